package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebhookSecretHeader carries the shared secret on vendor callbacks
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret rejects callbacks whose X-Webhook-Secret does not match secret.
// An empty secret leaves the route open.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(WebhookSecretHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Webhook secret is required",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid webhook secret",
			})
			return
		}

		c.Next()
	}
}
