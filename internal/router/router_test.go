package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupRouter(t *testing.T) {
	r := SetupRouter(Services{}, "s3cret")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	protected := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/campaigns"},
		{http.MethodGet, "/api/v1/campaigns/history"},
		{http.MethodGet, "/api/v1/customers"},
		{http.MethodPost, "/api/v1/orders/bulk"},
	}
	for _, p := range protected {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(p.method, p.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", p.method, p.path)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/delivery-receipt", strings.NewReader(`{}`))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
