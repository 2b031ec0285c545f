package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger returns a middleware that logs requests using logrus
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		// Health probes and the long-lived event stream would flood the log
		if strings.HasSuffix(path, "/health") || strings.HasSuffix(path, "/events") {
			return
		}

		// Tokens may travel in the query of the event stream
		if raw != "" && !strings.Contains(raw, "access_token") {
			path = path + "?" + raw
		}

		statusCode := c.Writer.Status()
		entry := logrus.WithFields(logrus.Fields{
			"status":    statusCode,
			"latency":   time.Since(start),
			"client_ip": c.ClientIP(),
			"method":    c.Request.Method,
			"path":      path,
		})
		if userID := c.GetString(ContextUserID); userID != "" {
			entry = entry.WithField("user_id", userID)
		}

		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Debug("Request handled")
		}
	}
}
