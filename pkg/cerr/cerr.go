package cerr

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Meta is the contextual metadata every gateway error carries.
type Meta struct {
	UserID     string
	Operation  string
	ResourceID string
	DeviceID   string
	Timestamp  time.Time
}

type Error struct {
	Kind  Kind
	Msg   string // returned to the caller together with the kind
	Err   error  // underlying cause, logged but never exposed
	Stack string
	Meta  Meta
}

// New builds a typed error. A stack trace is captured only for kinds that log
// at error severity, so deterministic validation failures stay cheap.
func New(kind Kind, msg string, underlying error) *Error {
	e := &Error{
		Kind: kind,
		Msg:  msg,
		Err:  underlying,
		Meta: Meta{Timestamp: time.Now()},
	}
	if kind.LogLevel() == slog.LevelError {
		buf := make([]byte, 2048)
		n := runtime.Stack(buf, false)
		e.Stack = string(buf[:n])
	}
	return e
}

func (e *Error) WithMeta(m Meta) *Error {
	if m.Timestamp.IsZero() {
		m.Timestamp = e.Meta.Timestamp
	}
	e.Meta = m
	return e
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Convert is the sole translation point from an arbitrary error to a typed
// one. Unknown errors become SYSTEM_ERROR and keep no caller-visible detail.
func Convert(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(KindSystem, "internal error", err)
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
