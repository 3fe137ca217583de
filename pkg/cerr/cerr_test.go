package cerr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindValidation, "VALIDATION_ERROR"},
		{KindPermission, "PERMISSION_ERROR"},
		{KindRateLimit, "RATE_LIMIT_ERROR"},
		{KindSecurity, "SECURITY_ERROR"},
		{KindWorkflow, "WORKFLOW_ERROR"},
		{KindSystem, "SYSTEM_ERROR"},
		{KindUnknown, "UNKNOWN_ERROR"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestKind_HTTPCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindWorkflow, http.StatusBadRequest},
		{KindPermission, http.StatusForbidden},
		{KindSecurity, http.StatusForbidden},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindSystem, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.HTTPCode(), "kind %s", tt.kind)
	}
}

func TestKind_LogLevel(t *testing.T) {
	for _, kind := range []Kind{KindValidation, KindPermission, KindRateLimit, KindSecurity, KindWorkflow} {
		assert.Equal(t, slog.LevelWarn, kind.LogLevel(), "kind %s", kind)
	}
	assert.Equal(t, slog.LevelError, KindSystem.LogLevel())
}

func TestNew_StackOnlyForErrorSeverity(t *testing.T) {
	sysErr := New(KindSystem, "internal error", errors.New("boom"))
	assert.NotEmpty(t, sysErr.Stack)
	assert.Contains(t, sysErr.Stack, "goroutine")

	valErr := New(KindValidation, "content must not be empty", nil)
	assert.Empty(t, valErr.Stack)
}

func TestError_Message(t *testing.T) {
	e := New(KindSecurity, "content contains forbidden pattern (system_commands)", nil)
	assert.Equal(t, "[SECURITY_ERROR] content contains forbidden pattern (system_commands)", e.Error())

	wrapped := New(KindSystem, "internal error", errors.New("disk full"))
	assert.Equal(t, "[SYSTEM_ERROR] internal error: disk full", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := New(KindSystem, "internal error", cause)
	assert.ErrorIs(t, e, cause)
}

func TestConvert(t *testing.T) {
	t.Run("typed error passes through", func(t *testing.T) {
		orig := New(KindRateLimit, "rate limit exceeded", nil)
		got := Convert(fmt.Errorf("wrapped: %w", orig))
		assert.Same(t, orig, got)
	})

	t.Run("unknown error becomes system error", func(t *testing.T) {
		got := Convert(errors.New("something unexpected"))
		assert.Equal(t, KindSystem, got.Kind)
		// The caller-visible message never leaks internals.
		assert.Equal(t, "internal error", got.Msg)
	})
}

func TestIsKindAndKindOf(t *testing.T) {
	e := New(KindPermission, "workflow belongs to another user", nil)

	assert.True(t, IsKind(e, KindPermission))
	assert.False(t, IsKind(e, KindValidation))
	assert.False(t, IsKind(errors.New("plain"), KindPermission))

	assert.Equal(t, KindPermission, KindOf(e))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestWithMeta(t *testing.T) {
	e := New(KindValidation, "missing csrf token", nil)
	require.False(t, e.Meta.Timestamp.IsZero())
	created := e.Meta.Timestamp

	e = e.WithMeta(Meta{UserID: "u-1", Operation: "create", DeviceID: "d-1"})
	assert.Equal(t, "u-1", e.Meta.UserID)
	assert.Equal(t, "create", e.Meta.Operation)
	// A zero timestamp in the new meta keeps the creation time.
	assert.Equal(t, created, e.Meta.Timestamp)
}
