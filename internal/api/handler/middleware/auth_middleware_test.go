package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipflow"
	"clipflow/pkg"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(cfg clipflow.AppConfig, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(cfg)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, "%s|%s", c.GetString("userID"), c.GetString("userRole"))
	})
	r.GET("/me", handlers...)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	var cfg clipflow.AppConfig
	cfg.Mode = "prod"
	cfg.JWTConfig.Secret = "secret"

	token, err := pkg.GenerateToken("user-1", "u@example.com", RoleUser, "secret", time.Minute)
	require.NoError(t, err)
	foreign, err := pkg.GenerateToken("user-1", "", RoleUser, "other", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		url    string
		header string
		code   int
		body   string
	}{
		{"bearer header", "/me", "Bearer " + token, http.StatusOK, "user-1|user"},
		{"query token", "/me?token=" + token, "", http.StatusOK, "user-1|user"},
		{"missing", "/me", "", http.StatusUnauthorized, ""},
		{"bad format", "/me", "Token " + token, http.StatusUnauthorized, ""},
		{"wrong secret", "/me", "Bearer " + foreign, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(cfg).ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_DevMode(t *testing.T) {
	var cfg clipflow.AppConfig
	cfg.Mode = "dev"

	w := httptest.NewRecorder()
	newRouter(cfg, RequireRole(RoleAdmin)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev-user|admin", w.Body.String())
}

func TestRequireRole(t *testing.T) {
	var cfg clipflow.AppConfig
	cfg.Mode = "prod"
	cfg.JWTConfig.Secret = "secret"

	admin, _ := pkg.GenerateToken("root", "", RoleAdmin, "secret", time.Minute)
	user, _ := pkg.GenerateToken("bob", "", RoleUser, "secret", time.Minute)

	for token, code := range map[string]int{admin: http.StatusOK, user: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		newRouter(cfg, RequireRole(RoleAdmin)).ServeHTTP(w, req)
		assert.Equal(t, code, w.Code)
	}
}
