package audit

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/tradeease/workflowgate/internal/eventbus"
	"github.com/tradeease/workflowgate/pkg/cerr"
)

// Status is the terminal outcome of one pipeline run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusBlocked Status = "blocked"
)

// Entry is everything the audit trail records about one completed run.
type Entry struct {
	Operation     string
	UserID        string
	NodeType      string
	DeviceID      string
	Status        Status
	Err           error
	ContentLength int
	HasMetadata   bool
	Context       string
	ResourceID    string
}

// Logger is the single place "what happened and why" is recorded. Logging is
// best-effort: it must never fail the request it describes.
type Logger struct {
	log *slog.Logger
	bus *eventbus.Bus
}

func NewLogger(log *slog.Logger, bus *eventbus.Bus) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log, bus: bus}
}

// LogOperation emits one structured record for a completed pipeline run and
// publishes the matching bus event. Panics from handlers or the bus are
// swallowed.
func (l *Logger) LogOperation(ctx context.Context, e Entry) {
	defer func() {
		_ = recover()
	}()

	attrs := []slog.Attr{
		slog.String("audit_id", ulid.Make().String()),
		slog.String("operation", e.Operation),
		slog.String("user_id", e.UserID),
		slog.String("node_type", e.NodeType),
		slog.String("device_id", e.DeviceID),
		slog.String("status", string(e.Status)),
		slog.Int("content_length", e.ContentLength),
		slog.Bool("has_metadata", e.HasMetadata),
		slog.String("context", e.Context),
	}
	if e.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", e.ResourceID))
	}

	var eventType eventbus.EventType
	var level slog.Level
	var msg string
	switch e.Status {
	case StatusSuccess:
		level, msg, eventType = slog.LevelInfo, "workflow operation completed", eventbus.EventTypeOperationSuccess
	case StatusFailure:
		level, msg, eventType = slog.LevelError, "workflow operation failed", eventbus.EventTypeOperationFailure
	default:
		level, msg, eventType = slog.LevelWarn, "workflow operation blocked", eventbus.EventTypeOperationBlocked
	}

	errMsg := ""
	if e.Err != nil {
		te := cerr.Convert(e.Err)
		errMsg = te.Msg
		attrs = append(attrs,
			slog.String("error_kind", te.Kind.String()),
			slog.String("error", te.Error()),
		)
		if te.Stack != "" {
			attrs = append(attrs, slog.String("stack", te.Stack))
		}
	}

	l.log.LogAttrs(ctx, level, msg, attrs...)

	if l.bus != nil {
		l.bus.PublishNew(eventType, e.UserID, e.Operation, errMsg, map[string]string{
			"node_type": e.NodeType,
			"device_id": e.DeviceID,
			"context":   e.Context,
		})
	}
}
