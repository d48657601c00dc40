package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"circle-chat/config"
	"circle-chat/internal/handler"
	"circle-chat/internal/middleware"
	"circle-chat/internal/transport/httpdto"
	"circle-chat/internal/websocket"
	"circle-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

const shutdownGrace = 5 * time.Second

type Handlers struct {
	Session      *handler.SessionHandler
	Conversation *handler.ConversationHandler
	Room         *handler.RoomHandler
	Group        *handler.GroupHandler
	User         *handler.UserHandler
	Socket       *websocket.Handler

	// Health reports whether the backing store is usable. Nil means always healthy.
	Health func(ctx context.Context) error
}

// Guards are the middleware dependencies of the routes.
type Guards struct {
	Verifier middleware.TokenVerifier
	Sessions middleware.SessionLookup
	// Limiter is optional.
	Limiter middleware.Limiter
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) SetupRoutes(h *Handlers, g Guards) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if h.Health != nil {
			if err := h.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/ws", h.Socket.Connect)

	authed := middleware.AuthMiddleware(g.Verifier)
	api := s.engine.Group("/api", authed)

	open := []gin.HandlerFunc{}
	send := []gin.HandlerFunc{}
	if g.Limiter != nil {
		open = append(open, middleware.SessionRateLimitMiddleware(g.Limiter))
		send = append(send, middleware.MessageRateLimitMiddleware(g.Limiter))
	}
	api.POST("/session", append(open, h.Session.Open)...)
	api.DELETE("/session", h.Session.Close)

	live := api.Group("", middleware.SessionMiddleware(g.Sessions))
	{
		live.GET("/session", h.Session.Get)

		live.GET("/conversations", h.Conversation.List)
		live.POST("/conversations/direct", h.Conversation.StartDirect)
		live.POST("/conversations/:id/select", h.Conversation.Select)
		live.DELETE("/conversations/:id", h.Conversation.Delete)
		live.DELETE("/selection", h.Conversation.Deselect)
		live.GET("/messages", h.Conversation.Messages)

		live.GET("/room", h.Room.State)
		live.PUT("/room/draft", h.Room.UpdateDraft)
		live.POST("/room/send", append(send, h.Room.Send)...)
		live.POST("/room/edit/:messageId", h.Room.StartEdit)
		live.PUT("/room/edit", h.Room.SaveEdit)
		live.DELETE("/room/edit", h.Room.CancelEdit)
		live.POST("/room/leave", h.Room.Leave)
		live.DELETE("/alerts", h.Room.DismissAlert)

		live.POST("/groups", h.Group.Create)
		live.PATCH("/groups/:id", h.Group.Update)
		live.POST("/groups/:id/leave", h.Group.Leave)
		live.POST("/groups/:id/members", h.Group.AddMembers)

		live.POST("/users/:id/block", h.User.Block)
		live.DELETE("/users/:id/block", h.User.Unblock)
		live.GET("/friends", h.User.Friends)
		live.GET("/gifs", h.User.Gifs)
	}
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down within %s", shutdownGrace)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
