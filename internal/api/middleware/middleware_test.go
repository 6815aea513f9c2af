package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpilot/backend/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(CORSMiddleware(), mw)
	r.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(OperatorKey))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	auth.InitJWT("test-secret")
	token, err := auth.GenerateToken("desk", 60)
	require.NoError(t, err)
	r := newRouter(AuthMiddleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "desk", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestOptionalAuthMiddleware(t *testing.T) {
	auth.InitJWT("test-secret")
	r := newRouter(OptionalAuthMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(AuthMiddleware())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/who", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
