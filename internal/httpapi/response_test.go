package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/workflows/internal/apperrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestRespondOK(t *testing.T) {
	t.Run("Should write a 200 wrapping the result", func(t *testing.T) {
		c, w := newTestContext()
		RespondOK(c, gin.H{"a": 1})
		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body, "result")
	})
}

func TestRespondCreated(t *testing.T) {
	t.Run("Should write a 201", func(t *testing.T) {
		c, w := newTestContext()
		RespondCreated(c, gin.H{"a": 1})
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestRespondAccepted(t *testing.T) {
	t.Run("Should write a 202", func(t *testing.T) {
		c, w := newTestContext()
		RespondAccepted(c, gin.H{"a": 1})
		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}

func TestRespondError(t *testing.T) {
	t.Run("Should map a validation error onto 400", func(t *testing.T) {
		c, w := newTestContext()
		RespondError(c, apperrors.Validation("bad input", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Should map a not-found error onto 404", func(t *testing.T) {
		c, w := newTestContext()
		RespondError(c, apperrors.NotFound("missing", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Should map a conflict error onto 409", func(t *testing.T) {
		c, w := newTestContext()
		RespondError(c, apperrors.Conflict("duplicate", nil))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Should map an untyped error onto 500", func(t *testing.T) {
		c, w := newTestContext()
		RespondError(c, assertError{})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
