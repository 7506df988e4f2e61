// Package logging defines the structured Logger interface every other
// package depends on (events carrying method/path/status/duration/
// client-IP) and a zerolog-backed implementation used for every ambient
// log line in this server.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured-logging surface every other package depends
// on. Kept as an interface so tests can substitute a no-op or
// buffer-capturing implementation without pulling in zerolog.
type Logger interface {
	Info(event string, fields map[string]any)
	Warn(event string, fields map[string]any)
	Error(event string, err error, fields map[string]any)
	// Security logs a SECURITY_VIOLATION event — rate-limit trips, path
	// traversal attempts, Host mismatches.
	Security(reason string, fields map[string]any)
}

// zerologLogger adapts zerolog.Logger to the Logger interface.
type zerologLogger struct {
	l zerolog.Logger
}

// New returns a Logger writing structured JSON lines to w.
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	l := zerolog.New(w).With().Timestamp().Logger()
	return &zerologLogger{l: l}
}

func apply(e *zerolog.Event, fields map[string]any) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

func (z *zerologLogger) Info(event string, fields map[string]any) {
	apply(z.l.Info(), fields).Msg(event)
}

func (z *zerologLogger) Warn(event string, fields map[string]any) {
	apply(z.l.Warn(), fields).Msg(event)
}

func (z *zerologLogger) Error(event string, err error, fields map[string]any) {
	apply(z.l.Error().Err(err), fields).Msg(event)
}

func (z *zerologLogger) Security(reason string, fields map[string]any) {
	apply(z.l.Warn().Str("reason", reason), fields).Msg("SECURITY_VIOLATION")
}

// RequestFields builds the standard field map for a completed
// request/response cycle.
func RequestFields(method, path string, status int, duration time.Duration, clientIP string) map[string]any {
	return map[string]any{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
		"client_ip":   clientIP,
	}
}
