package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"todo_tracker/internal/auth"
	"todo_tracker/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(issuer *auth.Issuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AuthMiddleware(issuer))
	router.GET("/me", func(c *gin.Context) {
		username, err := auth.GetUsernameFromContext(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": username})
	})
	return router
}

func callWithHeader(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testIssuer(ttl time.Duration) *auth.Issuer {
	return auth.NewIssuer(config.JWTConfig{
		Secret:     "middleware-test-secret",
		Issuer:     "todo-tracker",
		AccessTTL:  ttl,
		RefreshTTL: time.Hour,
	})
}

func TestAuthMiddleware_ValidAccessToken(t *testing.T) {
	issuer := testIssuer(time.Minute)
	pair, err := issuer.GenerateTokenPair("alice")
	require.NoError(t, err)

	w := callWithHeader(newAuthRouter(issuer), "Bearer "+pair.AccessToken)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	issuer := testIssuer(time.Minute)
	pair, err := issuer.GenerateTokenPair("alice")
	require.NoError(t, err)

	other := auth.NewIssuer(config.JWTConfig{Secret: "another-secret", Issuer: "todo-tracker", AccessTTL: time.Minute})
	foreign, err := other.GenerateTokenPair("alice")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "Authorization header required"},
		{"wrong scheme", "Basic " + pair.AccessToken, "Invalid authorization format"},
		{"no token", "Bearer", "Invalid authorization format"},
		{"garbage token", "Bearer not.a.token", "Invalid token"},
		{"refresh token", "Bearer " + pair.RefreshToken, "Invalid token type"},
		{"foreign signature", "Bearer " + foreign.AccessToken, "Invalid token"},
	}

	router := newAuthRouter(issuer)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := callWithHeader(router, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	issuer := testIssuer(time.Nanosecond)
	pair, err := issuer.GenerateTokenPair("alice")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	w := callWithHeader(newAuthRouter(issuer), "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token expired")
}
