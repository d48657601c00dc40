package middleware

import (
	"circle-chat/internal/transport/httpdto"
	"circle-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders errors attached with c.Error when the handler wrote nothing.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.Ctx(c.Request.Context()).Errorf("request error: %s", err.Error())
		}
		if c.Writer.Written() {
			return
		}
		status, code := httpdto.StatusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(httpdto.Message(err), code))
	}
}
