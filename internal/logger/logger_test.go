package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return the logger stored in context", func(t *testing.T) {
		want := NewLogger(DebugLevel)
		ctx := ContextWithLogger(context.Background(), want)

		got := FromContext(ctx)

		require.NotNil(t, got)
		assert.Same(t, want, got)
	})

	t.Run("Should return the default logger when none is present", func(t *testing.T) {
		got := FromContext(context.Background())
		require.NotNil(t, got)
	})

	t.Run("Should return the default logger when a nil context is given", func(t *testing.T) {
		got := FromContext(nil) //nolint:staticcheck
		require.NotNil(t, got)
	})

	t.Run("Should return the default logger for a mistyped value", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), LoggerCtxKey, "not a logger")
		got := FromContext(ctx)
		require.NotNil(t, got)
	})
}

func TestLevel_ToCharmLevel(t *testing.T) {
	t.Run("Should map known levels and default unknown ones to info", func(t *testing.T) {
		assert.Equal(t, InfoLevel.ToCharmLevel(), Level("bogus").ToCharmLevel())
		assert.NotEqual(t, DebugLevel.ToCharmLevel(), InfoLevel.ToCharmLevel())
	})
}

func TestLogger_With(t *testing.T) {
	t.Run("Should not panic when logging with extra fields", func(t *testing.T) {
		l := NewLogger(DisabledLevel)
		child := l.With("request_id", "abc")
		assert.NotPanics(t, func() {
			child.Info("hello", "k", "v")
			child.Debug("debug")
			child.Warn("warn")
			child.Error("error")
		})
	})
}
