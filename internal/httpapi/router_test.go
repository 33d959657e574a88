package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRegister_RequiresAuth(t *testing.T) {
	t.Run("Should guard every /workflow route behind JWTAuth", func(t *testing.T) {
		repo := newFakeRepo()
		deps := newTestDeps(repo)
		r := gin.New()
		deps.Register(r, []byte("secret"))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/workflow", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Should guard the scheduling routes behind JWTAuth", func(t *testing.T) {
		repo := newFakeRepo()
		deps := newTestDeps(repo)
		r := gin.New()
		deps.Register(r, []byte("secret"))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/Show_TaskSchedules", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
