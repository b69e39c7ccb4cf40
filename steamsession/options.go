package steamsession

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type config struct {
	httpClient        *http.Client
	logger            *slog.Logger
	maxConnections    int
	connectionTimeout time.Duration
	webLimiterDelay   time.Duration
	refresher         SessionRefresher
}

// Option configures a Session.
type Option func(*config)

// WithHTTPClient sets the HTTP client (and its cookie jar) the session
// issues requests through.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(cfg *config) { cfg.httpClient = httpClient }
}

// WithLogger sets the structured logger used for session diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithMaxConnections sets the per-host connection cap enforced by the
// executor's rate limiter. Default: 5.
func WithMaxConnections(n int) Option {
	return func(cfg *config) { cfg.maxConnections = n }
}

// WithConnectionTimeout bounds how long the executor polls for
// initialization before giving up. Default: 90s.
func WithConnectionTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.connectionTimeout = d }
}

// WithWebLimiterDelay sets the minimum start-to-start interval between
// requests to the same service host. A zero delay disables rate limiting.
// Default: 300ms.
func WithWebLimiterDelay(d time.Duration) Option {
	return func(cfg *config) { cfg.webLimiterDelay = d }
}

// SessionRefresher performs out-of-band session renewal, e.g. replaying a
// stored refresh token or maFile secrets through the auth handshake again.
// The concrete renewal strategy lives outside this package; the session
// manager only needs to know whether it succeeded.
type SessionRefresher interface {
	RefreshSession(ctx context.Context) error
}

// WithRefresher installs the delegate used by refresh_session (C5). If
// omitted, refreshes always fail and the caller must re-run the auth
// handshake manually.
func WithRefresher(r SessionRefresher) Option {
	return func(cfg *config) { cfg.refresher = r }
}
