package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(secret []byte) *gin.Engine {
	r := gin.New()
	r.Use(JWTAuth(secret))
	r.GET("/whoami", func(c *gin.Context) {
		RespondOK(c, gin.H{"user_id": UserID(c)})
	})
	return r
}

func signToken(t *testing.T, secret []byte, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestRequestID(t *testing.T) {
	t.Run("Should assign a request id when the caller supplies none", func(t *testing.T) {
		r := gin.New()
		r.Use(RequestID())
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)
		assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	})

	t.Run("Should echo back a caller-supplied request id", func(t *testing.T) {
		r := gin.New()
		r.Use(RequestID())
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Request-Id", "caller-supplied")
		r.ServeHTTP(w, req)
		assert.Equal(t, "caller-supplied", w.Header().Get("X-Request-Id"))
	})
}

func TestJWTAuth(t *testing.T) {
	secret := []byte("test-secret")

	t.Run("Should reject a request with no Authorization header", func(t *testing.T) {
		r := newAuthRouter(secret)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Should reject a malformed Authorization header", func(t *testing.T) {
		r := newAuthRouter(secret)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Token abc")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Should reject an expired token", func(t *testing.T) {
		r := newAuthRouter(secret)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1", time.Now().Add(-time.Hour)))
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Should reject a token signed with the wrong secret", func(t *testing.T) {
		r := newAuthRouter(secret)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(
			"Authorization",
			"Bearer "+signToken(t, []byte("wrong-secret"), "user-1", time.Now().Add(time.Hour)),
		)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Should accept a valid token and expose the subject as UserID", func(t *testing.T) {
		r := newAuthRouter(secret)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1", time.Now().Add(time.Hour)))
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "user-1")
	})
}
