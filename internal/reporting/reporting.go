// Package reporting forwards unexpected errors to Sentry.  A nil or
// disabled Reporter is a no-op so callers never need to check.
package reporting

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter captures errors with tags identifying where they happened.
type Reporter struct {
	enabled bool
}

// New initializes Sentry when dsn is non-empty.  Initialization failures
// are logged and yield a disabled Reporter.
func New(dsn, environment string, logger *slog.Logger) *Reporter {
	if dsn == "" {
		logger.Info("SENTRY_DSN not set, error reporting disabled")
		return &Reporter{}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		logger.Error("sentry initialization failed", "error", err)
		return &Reporter{}
	}
	return &Reporter{enabled: true}
}

// Capture sends err to Sentry with the given tags.
func (r *Reporter) Capture(err error, tags map[string]string) {
	if r == nil || !r.enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events; call before exit.
func (r *Reporter) Flush(timeout time.Duration) {
	if r == nil || !r.enabled {
		return
	}
	sentry.Flush(timeout)
}
