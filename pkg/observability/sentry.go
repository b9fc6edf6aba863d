// Package observability wires error reporting into the HTTP stack and background jobs.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry enables Sentry when dsn is set. Without it every capture is a no-op.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// ReportTaskError forwards a background task failure to Sentry
func ReportTaskError(task string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("task", task)
		sentry.CaptureException(err)
	})
}
