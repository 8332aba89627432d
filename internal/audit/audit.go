// Package audit emits structured security and audit events. Events go
// through the process-wide slog handler so they share the JSON sink and
// can be routed by the "log" attribute.
package audit

import (
	"log/slog"
	"net/http"
)

// SecurityEvent records a security-relevant occurrence (validation
// failures, rejected uploads, rate-limit hits).
func SecurityEvent(r *http.Request, eventType string, attrs ...any) {
	base := []any{
		"log", "security",
		"event_type", eventType,
	}
	if r != nil {
		base = append(base,
			"ip_address", r.RemoteAddr,
			"user_agent", r.UserAgent(),
			"path", r.URL.Path,
		)
	}
	slog.Warn("security event", append(base, attrs...)...)
}

// Event records an audit-trail entry for compliance (diagnoses created,
// images analyzed, sessions cleared).
func Event(action, resource string, attrs ...any) {
	base := []any{
		"log", "audit",
		"action", action,
		"resource", resource,
	}
	slog.Info("audit event", append(base, attrs...)...)
}
