package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhur-katering/katering-api/internal/models"
	"github.com/azhur-katering/katering-api/internal/service"
)

func newTokenService() *service.TokenService {
	return service.NewTokenService(service.TokenConfig{
		Secret:        "test-secret",
		Issuer:        "azhur-katering",
		Audience:      "azhur-katering-frontend",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 168 * time.Hour,
	})
}

func protectedRouter(tokens *service.TokenService, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", JWT(tokens))
	if len(roles) > 0 {
		group.Use(RequireRoles(roles...))
	}
	group.GET("/protected", func(c *gin.Context) {
		claims, _ := CurrentClaims(c)
		c.String(http.StatusOK, claims.UserID)
	})
	return r
}

func TestJWTRejectsMissingToken(t *testing.T) {
	r := protectedRouter(newTokenService())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAcceptsBearerHeader(t *testing.T) {
	tokens := newTokenService()
	r := protectedRouter(tokens)

	token, err := tokens.MintAccessToken(&models.User{ID: "u1", Email: "ivan@example.com", Role: models.RoleUser})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestJWTAcceptsCookie(t *testing.T) {
	tokens := newTokenService()
	r := protectedRouter(tokens)

	token, err := tokens.MintAccessToken(&models.User{ID: "u1", Email: "ivan@example.com", Role: models.RoleUser})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTRejectsRefreshToken(t *testing.T) {
	tokens := newTokenService()
	r := protectedRouter(tokens)

	token, err := tokens.MintRefreshToken(&models.User{ID: "u1", Email: "ivan@example.com", Role: models.RoleUser})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequireRolesForbidsUser(t *testing.T) {
	tokens := newTokenService()
	r := protectedRouter(tokens, models.RoleAdmin)

	token, err := tokens.MintAccessToken(&models.User{ID: "u1", Email: "ivan@example.com", Role: models.RoleUser})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesAdmitsAdmin(t *testing.T) {
	tokens := newTokenService()
	r := protectedRouter(tokens, models.RoleAdmin)

	token, err := tokens.MintAccessToken(&models.User{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(3, time.Minute)

	r := gin.New()
	r.GET("/", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	var last int
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
}
