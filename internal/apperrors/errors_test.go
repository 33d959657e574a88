package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_StatusCode(t *testing.T) {
	t.Run("Should map each kind to its HTTP status", func(t *testing.T) {
		cases := map[Kind]int{
			KindValidation:     http.StatusBadRequest,
			KindAuth:           http.StatusUnauthorized,
			KindNotFound:       http.StatusNotFound,
			KindConflict:       http.StatusConflict,
			KindSchedulerStore: http.StatusInternalServerError,
			KindExecutor:       http.StatusInternalServerError,
			KindEngine:         http.StatusInternalServerError,
		}
		for kind, want := range cases {
			err := New(kind, "boom", nil)
			assert.Equal(t, want, err.StatusCode())
		}
	})

	t.Run("Should default to 500 for a nil error", func(t *testing.T) {
		var e *Error
		assert.Equal(t, http.StatusInternalServerError, e.StatusCode())
	})
}

func TestError_Unwrap(t *testing.T) {
	t.Run("Should unwrap the cause", func(t *testing.T) {
		cause := errors.New("underlying")
		err := New(KindNotFound, "not found", cause)
		require.ErrorIs(t, err, cause)
	})
}

func TestError_AsMap(t *testing.T) {
	t.Run("Should render message code and details", func(t *testing.T) {
		err := New(KindValidation, "bad input", nil).WithDetails(map[string]any{"field": "name"})
		m := err.AsMap()
		assert.Equal(t, "bad input", m["message"])
		assert.Equal(t, KindValidation, m["code"])
		assert.Equal(t, map[string]any{"field": "name"}, m["details"])
	})
}

func TestIs(t *testing.T) {
	t.Run("Should match the kind", func(t *testing.T) {
		err := Conflict("dup", nil)
		assert.True(t, Is(err, KindConflict))
		assert.False(t, Is(err, KindNotFound))
	})

	t.Run("Should return false for a plain error", func(t *testing.T) {
		assert.False(t, Is(errors.New("plain"), KindConflict))
	})
}
