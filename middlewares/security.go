package middlewares

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders hardens JSON and upload responses. The websocket
// handshake is skipped so proxies see an untouched upgrade.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Upgrade") == "websocket" {
			c.Next()
			return
		}
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", "default-src 'none'; img-src 'self'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		c.Next()
	}
}
