package middleware

import (
	"net/http"
	"strings"

	"circle-chat/internal/auth"
	"circle-chat/internal/services"
	"circle-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

const tokenKey = "bearer_token"

type TokenVerifier interface {
	Parse(token string) (auth.Identity, error)
}

type SessionLookup interface {
	Get(userID string) (*services.Session, bool)
}

// AuthMiddleware rejects requests without a valid bearer token and tags the context
// with the caller's id.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		id, err := verifier.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
			return
		}

		c.Set(tokenKey, token)
		c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), id.UserID))
		c.Next()
	}
}

// SessionMiddleware requires an open session for the authenticated caller.
func SessionMiddleware(sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", httpdto.CodeUnauthorized))
			return
		}
		sess, ok := sessions.Get(userID)
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, httpdto.NewErrorResponse("no active session", httpdto.CodeNoSession))
			return
		}
		c.Request = c.Request.WithContext(services.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// BearerToken returns the token AuthMiddleware accepted.
func BearerToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
