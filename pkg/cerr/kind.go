package cerr

import (
	"log/slog"
	"net/http"
)

// Kind is the closed set of gateway error kinds. Every failure surfaced to a
// caller is one of these, never a raw error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindPermission
	KindRateLimit
	KindSecurity
	KindWorkflow
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindPermission:
		return "PERMISSION_ERROR"
	case KindRateLimit:
		return "RATE_LIMIT_ERROR"
	case KindSecurity:
		return "SECURITY_ERROR"
	case KindWorkflow:
		return "WORKFLOW_ERROR"
	case KindSystem:
		return "SYSTEM_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

func (k Kind) HTTPCode() int {
	switch k {
	case KindValidation, KindWorkflow:
		return http.StatusBadRequest
	case KindPermission, KindSecurity:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindSystem:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// LogLevel maps a kind to the severity its audit/log records carry.
// Deterministic client-side failures are warnings at most; only unexpected
// internal failures are errors.
func (k Kind) LogLevel() slog.Level {
	switch k {
	case KindValidation, KindWorkflow, KindPermission, KindRateLimit:
		return slog.LevelWarn
	case KindSecurity:
		return slog.LevelWarn
	case KindSystem:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
