package handler

import (
	"net/http"

	"circle-chat/internal/middleware"
	"circle-chat/internal/services"
	"circle-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Open signs the bearer token in and starts (or reuses) the caller's session.
func (h *SessionHandler) Open(c *gin.Context) {
	sess, err := h.sessions.Open(c.Request.Context(), middleware.BearerToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SessionResponse{
		User:        sess.Provider.User().Get(),
		GifsEnabled: sess.Provider.GifsEnabled(),
	}))
}

func (h *SessionHandler) Get(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SessionResponse{
		User:        sess.Provider.User().Get(),
		GifsEnabled: sess.Provider.GifsEnabled(),
	}))
}

func (h *SessionHandler) Close(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
		return
	}
	if err := h.sessions.Close(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"signed_out": true}))
}
