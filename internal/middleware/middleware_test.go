package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(_ context.Context, token string) (*models.TokenInfo, error) {
	if token != "good" {
		return nil, errors.New("invalid token")
	}
	return &models.TokenInfo{UserID: "op-1", Username: "alice"}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter() *gin.Engine {
	r := gin.New()
	r.Use(NewBearerTokenMiddleware(stubValidator{}).BearerTokenAuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": actor.UserID, "username": actor.Username})
	})
	return r
}

func TestBearerTokenAuthMiddleware(t *testing.T) {
	r := newProtectedRouter()

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"valid header", "Bearer good", "", http.StatusOK},
		{"valid query token", "", "?access_token=good", http.StatusOK},
		{"wrong token", "Bearer bad", "", http.StatusUnauthorized},
		{"missing header", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "?access_token=good", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestWebhookSecret(t *testing.T) {
	r := gin.New()
	r.POST("/hook", WebhookSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(secret string) int {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		if secret != "" {
			req.Header.Set(WebhookSecretHeader, secret)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("s3cret"))
	assert.Equal(t, http.StatusUnauthorized, send("nope"))
	assert.Equal(t, http.StatusUnauthorized, send(""))
}

func TestWebhookSecretDisabled(t *testing.T) {
	r := gin.New()
	r.POST("/hook", WebhookSecret(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
