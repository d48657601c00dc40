package websocket

import (
	"context"
	"net/http"

	"circle-chat/internal/auth"
	"circle-chat/internal/transport/httpdto"
	"circle-chat/pkg/events"
	"circle-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Sessions is the part of the session service the socket endpoint needs.
type Sessions interface {
	Verify(token string) (auth.Identity, error)
	Snapshot(userID string) ([]events.Event, bool)
}

type Handler struct {
	sessions Sessions
	hub      *Hub
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(sessions Sessions, hub *Hub, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		sessions: sessions,
		hub:      hub,
		log:      log.Named("ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect upgrades GET /ws?token= and streams the caller's session events.
func (h *Handler) Connect(c *gin.Context) {
	id, err := h.sessions.Verify(c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
		return
	}
	if _, ok := h.sessions.Snapshot(id.UserID); !ok {
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("no active session", httpdto.CodeNoSession))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debugf("upgrade failed for %s: %v", id.UserID, err)
		return
	}

	client := NewClient(conn, id.UserID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client, func() []events.Event {
		snapshot, _ := h.sessions.Snapshot(id.UserID)
		return snapshot
	})
	h.log.Debugf("socket %s connected for %s", client.ID, id.UserID)
	go client.WriteLoop(ctx)

	client.ReadLoop()
	h.hub.Unregister(client)
	h.log.Debugf("socket %s closed", client.ID)
}
