package steamcommunity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/steamforge/mobileauth/steamid"
)

// DefaultConfirmationsLimiterDelay is the minimum gap GetConfirmations
// enforces between two listing requests.
const DefaultConfirmationsLimiterDelay = 10 * time.Second

// Executor routes one HTTP round trip for host (e.g. "community") through
// session-aware protections: per-host rate limiting, expired-session
// detection/refresh, and retry on Steam's self-profile-redirect quirk.
// *steamsession.Session satisfies this via its ExecuteRequest method;
// Community depends on this narrow interface instead of importing
// steamsession directly, so it isn't coupled to the session's concrete type.
type Executor interface {
	ExecuteRequest(ctx context.Context, host string, buildRequest func(context.Context) (*http.Request, error)) (*http.Response, error)
}

// directExecutor is the fallback Executor used when a Community is
// constructed without one (e.g. in tests, or standalone use with a bare
// *http.Client): it performs the round trip directly, with none of the
// session-aware protections a real Executor provides.
type directExecutor struct {
	client *http.Client
}

func (d directExecutor) ExecuteRequest(ctx context.Context, _ string, buildRequest func(context.Context) (*http.Request, error)) (*http.Response, error) {
	req, err := buildRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return d.client.Do(req)
}

type Community struct {
	httpClient *http.Client
	executor   Executor
	sessionID  string
	steamID    steamid.SteamID
	confGate   *confirmationGate
}

type config struct {
	httpClient                *http.Client
	executor                  Executor
	confirmationsLimiterDelay time.Duration
}

type Option func(options *config) error

func WithHTTPClient(httpClient *http.Client) Option {
	return func(options *config) error {
		if httpClient == nil {
			return errors.New("httpClient should be non-nil")
		}
		options.httpClient = httpClient
		return nil
	}
}

// WithExecutor routes every outbound call through e instead of issuing
// requests directly against the configured *http.Client. Pass the
// *steamsession.Session backing this Community's cookie jar to get
// per-host rate limiting, session-expiry detection/refresh, and
// self-profile retry for free.
func WithExecutor(e Executor) Option {
	return func(options *config) error {
		if e == nil {
			return errors.New("executor should be non-nil")
		}
		options.executor = e
		return nil
	}
}

// WithConfirmationsLimiterDelay overrides the minimum gap between
// GetConfirmations calls. Zero disables the gate entirely.
func WithConfirmationsLimiterDelay(delay time.Duration) Option {
	return func(options *config) error {
		options.confirmationsLimiterDelay = delay
		return nil
	}
}

func New(opts ...Option) (*Community, error) {
	cfg := config{confirmationsLimiterDelay: DefaultConfirmationsLimiterDelay}
	for _, opt := range opts {
		err := opt(&cfg)
		if err != nil {
			return nil, err
		}
	}

	c := &Community{confGate: &confirmationGate{delay: cfg.confirmationsLimiterDelay}}

	if cfg.httpClient != nil {
		c.httpClient = cfg.httpClient
	} else {
		c.httpClient = http.DefaultClient
	}

	if cfg.executor != nil {
		c.executor = cfg.executor
	} else {
		c.executor = directExecutor{client: c.httpClient}
	}

	// sessionID/steamID are populated lazily by ensureInit: a Community is
	// often constructed to wrap a *steamsession.Session whose cookie jar
	// isn't populated yet (Login happens after New returns), so requiring
	// the cookies here would make that ordering impossible.
	return c, nil
}

// ensureInit re-extracts sessionID and steamID from the cookie jar if they
// haven't been populated yet. Community instances are often constructed
// before the session's auth handshake completes (e.g. wrapping a
// steamsession.Session whose cookies are set by Login after New returns),
// so most operations call this before touching c.sessionID or c.steamID.
func (c *Community) ensureInit() error {
	if c.sessionID != "" && c.steamID != 0 {
		return nil
	}

	sessionID, err := extractSessionID(c.httpClient.Jar)
	if err != nil {
		return fmt.Errorf("extract sessionID: %w", err)
	}
	steamID, err := extractSteamID(c.httpClient.Jar)
	if err != nil {
		return fmt.Errorf("extract steamID: %w", err)
	}

	c.sessionID = sessionID
	c.steamID = steamID
	return nil
}

func extractSessionID(jar http.CookieJar) (string, error) {
	u, _ := url.Parse("https://steamcommunity.com")
	cookies := jar.Cookies(u)

	for _, cookie := range cookies {
		if cookie.Name == "sessionid" {
			return cookie.Value, nil
		}
	}

	return "", errors.New("sessionID is missing")
}

func extractSteamID(jar http.CookieJar) (steamid.SteamID, error) {
	u, _ := url.Parse("https://steamcommunity.com")
	cookies := jar.Cookies(u)

	for _, cookie := range cookies {
		if cookie.Name == "steamLoginSecure" {
			t := strings.Split(cookie.Value, "%7C%7C") // URL encoded "||"
			if len(t) < 2 {
				return steamid.SteamID(0), errors.New("unsplittable steamLoginSecure cookie")
			}

			sid, err := steamid.FromString(t[0])
			if err != nil {
				return steamid.SteamID(0), fmt.Errorf("parse SteamID: %w", err)
			}

			return sid, nil
		}
	}

	return steamid.SteamID(0), errors.New("missing steamLoginSecure cookie")
}
