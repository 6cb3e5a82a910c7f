package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	// DSN is the Sentry Data Source Name (required if Enabled is true)
	DSN string

	// Enabled controls whether Sentry is active
	Enabled bool

	// Environment identifies the deployment environment (dev, prod)
	Environment string

	// Release is the application version/release identifier
	Release string

	// SampleRate controls the percentage of errors to capture (0.0 to 1.0)
	// Default: 1.0 (capture all errors)
	SampleRate float64

	// TracesSampleRate controls the percentage of transactions to trace (0.0 to 1.0)
	TracesSampleRate float64

	Debug bool
}

type sentryClient struct {
	enabled bool
	config  SentryConfig
}

var sentryInstance *sentryClient

// InitSentry initializes the Sentry client.
// Returns a cleanup function that should be called on application shutdown
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	sentryInstance = &sentryClient{
		enabled: cfg.Enabled,
		config:  cfg,
	}

	if !cfg.Enabled {
		logger.Info("Sentry disabled")
		return func() {}, nil
	}

	if cfg.DSN == "" {
		logger.Warn("Sentry DSN not configured, disabling error tracking")
		sentryInstance.enabled = false
		return func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Session cookies and bearer tokens never leave the process.
			if event.Request != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
	)

	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}

// IsEnabled returns whether Sentry is currently enabled
func IsEnabled() bool {
	if sentryInstance == nil {
		return false
	}
	return sentryInstance.enabled
}

// CaptureError captures an error with optional extras.
// Safe to call even when Sentry is disabled
func CaptureError(err error, extras map[string]any) {
	if !IsEnabled() || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		sentry.CaptureException(err)
	})
}

// CaptureMessage captures a non-error event, such as a paid order that
// had to be cancelled and needs a manual refund.
func CaptureMessage(message string, level sentry.Level, extras map[string]any) {
	if !IsEnabled() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		sentry.CaptureMessage(message)
	})
}

// CaptureErrorFromContext captures an error using the Sentry hub from the
// request context, which carries the request and shopper scope.
func CaptureErrorFromContext(ctx context.Context, err error, extras map[string]any) {
	if !IsEnabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}

// SentryMiddleware returns an HTTP middleware that captures panics and
// attaches a per-request hub.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}

			hub.Scope().SetRequest(r)
			ctx := sentry.SetHubOnContext(r.Context(), hub)

			defer func() {
				if err := recover(); err != nil {
					hub.RecoverWithContext(ctx, err)
					sentry.Flush(2 * time.Second)
					panic(err)
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetShopper tags the request hub with the resolved shopper.
func SetShopper(ctx context.Context, id string, isGuest bool) {
	if !IsEnabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return
	}
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: id})
		scope.SetTag("guest", fmt.Sprintf("%t", isGuest))
	})
}

// HTTPTransport wraps an http.RoundTripper to add Sentry tracing to
// outbound gateway calls.
type HTTPTransport struct {
	Transport http.RoundTripper
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if !IsEnabled() {
		return base.RoundTrip(req)
	}

	span := sentry.StartSpan(req.Context(), "http.client")
	span.Description = fmt.Sprintf("%s %s", req.Method, req.URL.Host)
	defer span.Finish()

	resp, err := base.RoundTrip(req)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
	} else {
		span.SetData("http.status_code", resp.StatusCode)
	}

	return resp, err
}
