package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeease/workflowgate/internal/eventbus"
	"github.com/tradeease/workflowgate/pkg/cerr"
)

type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

type panicHandler struct{}

func (panicHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (panicHandler) Handle(context.Context, slog.Record) error { panic("handler exploded") }
func (panicHandler) WithAttrs([]slog.Attr) slog.Handler        { return panicHandler{} }
func (panicHandler) WithGroup(string) slog.Handler             { return panicHandler{} }

func attrs(r slog.Record) map[string]slog.Value {
	m := make(map[string]slog.Value)
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value
		return true
	})
	return m
}

func TestLogOperation_SeverityByStatus(t *testing.T) {
	tests := []struct {
		status Status
		err    error
		level  slog.Level
		msg    string
	}{
		{StatusSuccess, nil, slog.LevelInfo, "workflow operation completed"},
		{StatusFailure, cerr.New(cerr.KindValidation, "bad", nil), slog.LevelError, "workflow operation failed"},
		{StatusBlocked, cerr.New(cerr.KindSecurity, "nope", nil), slog.LevelWarn, "workflow operation blocked"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h := &captureHandler{}
			l := NewLogger(slog.New(h), nil)

			l.LogOperation(context.Background(), Entry{
				Operation: "create",
				UserID:    "user-1",
				Status:    tt.status,
				Err:       tt.err,
			})

			require.Len(t, h.records, 1)
			assert.Equal(t, tt.level, h.records[0].Level)
			assert.Equal(t, tt.msg, h.records[0].Message)
		})
	}
}

func TestLogOperation_Attributes(t *testing.T) {
	h := &captureHandler{}
	l := NewLogger(slog.New(h), nil)

	l.LogOperation(context.Background(), Entry{
		Operation:     "edit",
		UserID:        "user-1",
		NodeType:      "task",
		DeviceID:      "device-1",
		Status:        StatusSuccess,
		ContentLength: 42,
		HasMetadata:   true,
		Context:       "personal-workflow",
		ResourceID:    "wf-1",
	})

	require.Len(t, h.records, 1)
	a := attrs(h.records[0])
	assert.Equal(t, "edit", a["operation"].String())
	assert.Equal(t, "user-1", a["user_id"].String())
	assert.Equal(t, "task", a["node_type"].String())
	assert.Equal(t, "device-1", a["device_id"].String())
	assert.Equal(t, int64(42), a["content_length"].Int64())
	assert.Equal(t, true, a["has_metadata"].Bool())
	assert.Equal(t, "personal-workflow", a["context"].String())
	assert.Equal(t, "wf-1", a["resource_id"].String())
	assert.NotEmpty(t, a["audit_id"].String())
}

func TestLogOperation_ErrorDetails(t *testing.T) {
	h := &captureHandler{}
	l := NewLogger(slog.New(h), nil)

	l.LogOperation(context.Background(), Entry{
		Operation: "create",
		Status:    StatusBlocked,
		Err:       cerr.New(cerr.KindSecurity, "content contains forbidden pattern (system_commands)", nil),
	})

	a := attrs(h.records[0])
	assert.Equal(t, "SECURITY_ERROR", a["error_kind"].String())
	assert.Contains(t, a["error"].String(), "forbidden pattern")
	// Warning-level kinds carry no stack trace.
	_, hasStack := a["stack"]
	assert.False(t, hasStack)
}

func TestLogOperation_SystemErrorCarriesStack(t *testing.T) {
	h := &captureHandler{}
	l := NewLogger(slog.New(h), nil)

	l.LogOperation(context.Background(), Entry{
		Operation: "create",
		Status:    StatusFailure,
		Err:       cerr.New(cerr.KindSystem, "internal error", errors.New("boom")),
	})

	a := attrs(h.records[0])
	require.Contains(t, a, "stack")
	assert.Contains(t, a["stack"].String(), "goroutine")
}

func TestLogOperation_PublishesBusEvent(t *testing.T) {
	h := &captureHandler{}
	bus := eventbus.New()
	id, ch := bus.Subscribe(8)
	defer bus.Unsubscribe(id)

	l := NewLogger(slog.New(h), bus)
	l.LogOperation(context.Background(), Entry{
		Operation: "create",
		UserID:    "user-1",
		NodeType:  "task",
		DeviceID:  "device-1",
		Context:   "personal-workflow",
		Status:    StatusBlocked,
		Err:       cerr.New(cerr.KindSecurity, "nope", nil),
	})

	select {
	case event := <-ch:
		assert.Equal(t, eventbus.EventTypeOperationBlocked, event.Type)
		assert.Equal(t, "user-1", event.UserID)
		assert.Equal(t, "create", event.Operation)
		assert.Equal(t, "nope", event.Message)
		assert.Equal(t, "task", event.Metadata["node_type"])
	case <-time.After(time.Second):
		t.Fatal("expected a bus event")
	}
}

func TestLogOperation_NeverPanics(t *testing.T) {
	l := NewLogger(slog.New(panicHandler{}), nil)

	assert.NotPanics(t, func() {
		l.LogOperation(context.Background(), Entry{
			Operation: "create",
			Status:    StatusSuccess,
		})
	})
}
