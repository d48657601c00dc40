package middleware

import (
	"time"

	"circle-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func LoggingMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log := l
		if log == nil {
			log = logger.GetGlobalLogger()
		}
		if log != nil {
			log.Ctx(c.Request.Context()).Infof("%s %s %d %s", method, path, c.Writer.Status(), time.Since(start).String())
		}
	}
}
