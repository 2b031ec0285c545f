package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
)

// Context keys set by BearerTokenAuthMiddleware
const (
	ContextUserID    = "user_id"
	ContextUsername  = "username"
	ContextTokenInfo = "token_info"
)

// TokenValidator resolves an access token to its operator
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.TokenInfo, error)
}

type BearerTokenMiddleware struct {
	validator TokenValidator
}

func NewBearerTokenMiddleware(validator TokenValidator) *BearerTokenMiddleware {
	return &BearerTokenMiddleware{validator: validator}
}

// BearerTokenAuthMiddleware validates the JWT and sets the operator in context.
// Browsers cannot set headers on EventSource, so an access_token query parameter is accepted too.
func (m *BearerTokenMiddleware) BearerTokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		switch {
		case strings.HasPrefix(authHeader, "Bearer "):
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		case authHeader == "":
			tokenString = c.Query("access_token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid authorization header format",
			})
			return
		}

		tokenInfo, err := m.validator.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid or expired token",
			})
			return
		}

		c.Set(ContextUserID, tokenInfo.UserID)
		c.Set(ContextUsername, tokenInfo.Username)
		c.Set(ContextTokenInfo, tokenInfo)

		c.Next()
	}
}

// ActorFromContext returns the operator set by BearerTokenAuthMiddleware
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	userID := c.GetString(ContextUserID)
	if userID == "" {
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Username: c.GetString(ContextUsername)}, true
}
