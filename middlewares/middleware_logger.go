package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/utils"
)

func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"ip":      c.ClientIP(),
		}
		if rid := c.GetHeader("X-Request-ID"); rid != "" {
			fields["request_id"] = rid
		}
		if uid, ok := c.Get(CtxUserID); ok {
			fields["user_id"] = uid
		}

		entry := utils.InfoLogger.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			utils.ErrorLogger.WithFields(fields).Error("Request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}
