package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	t.Run("Should record a request and expose it on /metrics", func(t *testing.T) {
		m := NewMetrics()
		r := gin.New()
		r.Use(m.Middleware())
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/metrics", m.Handler())

		pingW := httptest.NewRecorder()
		r.ServeHTTP(pingW, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, pingW.Code)

		metricsW := httptest.NewRecorder()
		r.ServeHTTP(metricsW, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, metricsW.Code)
		assert.Contains(t, metricsW.Body.String(), "workflows_http_requests_total")
	})
}
