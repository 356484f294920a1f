package sentry

import (
	"fmt"
	"log/slog"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
)

var enabled bool

// Config holds Sentry initialization parameters.
type Config struct {
	DSN         string
	Environment string
	Release     string
	Enabled     bool
}

// Init configures the Sentry client. With Enabled false this is a no-op and
// every capture helper degrades to a log line.
func Init(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}

	err := sentrygo.Init(sentrygo.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}

	enabled = true
	return nil
}

// CaptureError reports an error with key/value tags.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if !enabled {
		slog.Debug("sentry disabled, skipping capture", "error", err)
		return
	}

	sentrygo.WithScope(func(scope *sentrygo.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentrygo.CaptureException(err)
	})
}

// Flush drains buffered events before shutdown.
func Flush(timeout time.Duration) {
	if enabled {
		sentrygo.Flush(timeout)
	}
}
