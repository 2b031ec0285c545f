package utils

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitSentry initializes Sentry for error tracking. An empty DSN disables it.
func InitSentry(dsn string) {
	if dsn == "" {
		logrus.Info("SENTRY_DSN not set, error tracking disabled")
		return
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		logrus.Errorf("sentry.Init: %s", err)
		return
	}
	logrus.Info("Sentry initialized")
}

// CaptureError reports err to Sentry. It is a no-op when Sentry is not initialized.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// FlushSentry waits for buffered events before shutdown
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
