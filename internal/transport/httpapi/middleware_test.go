package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"trackme/realtime/internal/auth"
	"trackme/realtime/internal/config"
)

func testMiddleware() *AuthMiddleware {
	cfg := &config.Config{
		ValidAPIKeys:        []string{"good-key"},
		AuthCacheTTLSeconds: 60,
	}
	return NewAuthMiddleware(auth.NewAuthenticator(cfg, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareMissingKey(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws", nil)

	testMiddleware().Wrap(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddlewareInvalidKey(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-API-Key", "bad-key")

	testMiddleware().Wrap(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddlewareHeaderKey(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-API-Key", "good-key")

	testMiddleware().Wrap(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthMiddlewareQueryParamKey(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws?api_key=good-key", nil)

	testMiddleware().Wrap(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
