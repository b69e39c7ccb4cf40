// Package steamtime maintains a corrected Steam-server clock (C1, the
// "Time Oracle" of the authenticator core). Steam's TOTP and confirmation
// hashes are sensitive to clock skew between the local machine and Steam's
// servers; an Oracle gives callers the current Steam time from a cached
// server offset instead of time.Now() alone. steamsession.Session holds no
// Oracle, and steamcommunity's confirmation calls do not use one: they query
// QueryTime directly on every call.
//
// An Oracle is process-wide shared state: callers that share one *Oracle
// share a single TTL window and a single in-flight refresh.
package steamtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/steamforge/mobileauth/steamapi"
)

// TTL is the default interval after which a cached offset is considered
// stale and must be refreshed from Steam's QueryTime RPC.
const TTL = 24 * time.Hour

// Oracle computes steam_time = local_unix + delta, refreshing delta from
// Steam's ITwoFactorService/QueryTime at most once per TTL. All methods are
// safe for concurrent use; concurrent callers that observe a stale delta
// collapse into a single in-flight refresh.
type Oracle struct {
	httpClient *http.Client
	logger     *slog.Logger
	ttl        time.Duration

	mu        sync.Mutex
	delta     *int64 // nil until the first successful refresh
	lastCheck time.Time
}

type config struct {
	httpClient *http.Client
	logger     *slog.Logger
	ttl        time.Duration
}

// Option configures an Oracle.
type Option func(*config)

// WithHTTPClient sets the HTTP client used to call QueryTime.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.httpClient = c }
}

// WithLogger sets the structured logger used for refresh diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithTTL overrides the default 24h refresh interval.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *config) { cfg.ttl = ttl }
}

// New constructs an Oracle with no cached delta; the first call to SteamTime
// triggers a synchronous QueryTime refresh.
func New(opts ...Option) *Oracle {
	cfg := config{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		ttl:        TTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Oracle{
		httpClient: cfg.httpClient,
		logger:     cfg.logger,
		ttl:        cfg.ttl,
	}
}

// SteamTime returns unix_now + delta. If delta is absent or older than the
// TTL, it attempts a single synchronous refresh via QueryTime; concurrent
// callers block behind the same refresh rather than issuing duplicate RPCs.
// If the refresh fails, the raw local unix time is returned — callers always get a usable value, never an
// error, matching spec.md's "fall back to raw unix_now without updating
// delta" behavior.
func (o *Oracle) SteamTime(ctx context.Context) uint32 {
	now := time.Now()
	nowUnix := now.Unix()

	o.mu.Lock()
	needsRefresh := o.delta == nil || now.Sub(o.lastCheck) >= o.ttl
	if !needsRefresh {
		delta := *o.delta
		o.mu.Unlock()
		return uint32(nowUnix + delta)
	}
	o.mu.Unlock()

	o.refresh(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.delta == nil {
		return uint32(nowUnix)
	}
	return uint32(nowUnix + *o.delta)
}

// refresh double-checks the TTL under the lock (so that concurrent callers
// who all observed a stale delta don't each issue their own QueryTime call)
// and, if still stale, queries Steam and updates delta.
func (o *Oracle) refresh(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.delta != nil && time.Since(o.lastCheck) < o.ttl {
		return // another caller already refreshed while we waited for the lock
	}

	serverTime, _, err := steamapi.GetSteamTimeWithClient(ctx, o.httpClient)
	if err != nil {
		o.logger.Warn("steamtime: QueryTime failed, falling back to local clock", "error", err)
		return
	}
	if serverTime == 0 {
		o.logger.Warn("steamtime: QueryTime returned zero server_time")
		return
	}

	delta := serverTime - time.Now().Unix()
	o.delta = &delta
	o.lastCheck = time.Now()
}
