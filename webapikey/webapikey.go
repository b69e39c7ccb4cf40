// Package webapikey implements the Steam Web API key lifecycle (C8):
// discovering whether a key is registered for the account behind a
// *steamsession.Session's cookie jar, registering one if not, and caching
// the terminal outcome so repeated calls don't re-scrape the page.
//
// Steam's classic /dev/apikey page is plain server-rendered HTML with no
// JSON envelope, so discovery works by DOM inspection (github.com/
// PuerkitoBio/goquery) rather than decoding a response body.
package webapikey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// State is the classification of a /dev/apikey page.
type State int

const (
	// StateTimeout means the page didn't load, or loaded without the
	// #mainContents heading discovery depends on.
	StateTimeout State = iota
	// StateAccessDenied means the account is blocked from registering a
	// key (e.g. email not validated).
	StateAccessDenied
	// StateNotRegisteredYet means the account has no key yet but can
	// register one.
	StateNotRegisteredYet
	// StateRegistered means a 32-hex-character key was found.
	StateRegistered
	// StateError covers every other shape: the page loaded, has a
	// #mainContents heading, but matches none of the known states.
	StateError
)

func (s State) String() string {
	switch s {
	case StateTimeout:
		return "Timeout"
	case StateAccessDenied:
		return "AccessDenied"
	case StateNotRegisteredYet:
		return "NotRegisteredYet"
	case StateRegistered:
		return "Registered"
	default:
		return "Error"
	}
}

var keyPattern = regexp.MustCompile(`Key:\s*([0-9A-F]{32})`)

// Discovery is the result of classifying one /dev/apikey page load.
type Discovery struct {
	State State
	Key   string // only meaningful when State == StateRegistered
}

// discoverState classifies a /dev/apikey response body. It never returns an
// error: an unparseable or empty body is itself a classification
// (StateTimeout or StateError), not a Go error — matching the module's
// "value or absence, never a rich exception" error-handling discipline for
// screen-scraped state.
func discoverState(body io.Reader) Discovery {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Discovery{State: StateTimeout}
	}

	heading := doc.Find("#mainContents h2").First()
	if heading.Length() == 0 {
		return Discovery{State: StateTimeout}
	}

	title := strings.TrimSpace(heading.Text())
	if strings.Contains(title, "Access Denied") || strings.Contains(title, "Validated email address required") {
		return Discovery{State: StateAccessDenied}
	}

	body2 := strings.TrimSpace(doc.Find("#bodyContents_ex").Text())
	if strings.Contains(body2, "Registering for a Steam Web API Key") {
		return Discovery{State: StateNotRegisteredYet}
	}

	if m := keyPattern.FindStringSubmatch(body2); len(m) == 2 {
		return Discovery{State: StateRegistered, Key: m[1]}
	}

	return Discovery{State: StateError}
}

// Executor routes one HTTP round trip for host (e.g. "community") through
// session-aware protections: per-host rate limiting, expired-session
// detection/refresh, and retry on Steam's self-profile-redirect quirk.
// *steamsession.Session satisfies this via its ExecuteRequest method;
// Resolver depends on this narrow interface instead of importing
// steamsession directly.
type Executor interface {
	ExecuteRequest(ctx context.Context, host string, buildRequest func(context.Context) (*http.Request, error)) (*http.Response, error)
}

// directExecutor is the fallback Executor used when a Resolver is
// constructed without one: it performs the round trip directly, with none of
// the session-aware protections a real Executor provides.
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

// Option configures a Resolver built by New.
type Option func(*Resolver)

// WithExecutor routes every outbound call through e instead of issuing
// requests directly against the configured *http.Client. Pass the
// *steamsession.Session backing httpClient's cookie jar to get per-host
// rate limiting, session-expiry detection/refresh, and self-profile retry
// for free.
func WithExecutor(e Executor) Option {
	return func(r *Resolver) {
		r.executor = e
	}
}

// AccountLimitChecker reports whether the account is presently in Steam's
// "limited" state (no purchase history), which permanently blocks Web API
// key registration. In the original system this question is answered by
// the bot facade that owns the account's protocol connection; here it's an
// injected dependency so webapikey doesn't need to know how that's
// determined.
type AccountLimitChecker interface {
	IsAccountLimited(ctx context.Context) (bool, error)
}

// ErrTransient is returned when the key's state couldn't be determined and
// the caller should retry later: the /dev/apikey page didn't load
// (StateTimeout), on the first discovery or on the re-discovery after
// registration.
var ErrTransient = errors.New("webapikey: transient failure, retry later")

// ErrUnexpectedState is returned when discovery lands on StateError, or
// when post-registration re-discovery lands on anything other than
// StateRegistered or StateTimeout.
var ErrUnexpectedState = errors.New("webapikey: unexpected /dev/apikey state")

// Resolver resolves and caches one account's Web API key. The zero value is
// not usable; construct with New.
type Resolver struct {
	httpClient *http.Client
	executor   Executor
	appName    string
	limited    AccountLimitChecker

	mu              sync.Mutex
	resolved        bool
	permanentlyGone bool
	key             string
}

// New constructs a Resolver. httpClient must share the cookie jar of an
// authenticated session (steamsession.Session.HTTPClient()). appName feeds
// the registration domain Steam records for the key
// ("generated.by.<appName>.localhost"). limited may be nil, in which case
// the account is never treated as limited. Pass WithExecutor(session) to
// route discover/register calls through the session's rate-limited,
// self-profile-aware request executor instead of httpClient directly.
func New(httpClient *http.Client, appName string, limited AccountLimitChecker, opts ...Option) *Resolver {
	r := &Resolver{httpClient: httpClient, appName: appName, limited: limited}
	for _, opt := range opts {
		opt(r)
	}
	if r.executor == nil {
		r.executor = directExecutor{client: httpClient}
	}
	return r
}

// Resolve returns the account's Web API key. A successful return with
// key == "" means the key is permanently unavailable (access denied, or the
// account is limited) — distinct from ErrTransient, which means the caller
// should try again later.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.resolved {
		key, gone := r.key, r.permanentlyGone
		r.mu.Unlock()
		if gone {
			return "", nil
		}
		return key, nil
	}
	r.mu.Unlock()

	if r.limited != nil {
		limited, err := r.limited.IsAccountLimited(ctx)
		if err != nil {
			return "", fmt.Errorf("check account limited: %w", err)
		}
		if limited {
			return r.cachePermanentlyUnavailable()
		}
	}

	discovery, err := r.discover(ctx)
	if err != nil {
		return "", err
	}

	switch discovery.State {
	case StateAccessDenied:
		return r.cachePermanentlyUnavailable()
	case StateRegistered:
		return r.cacheKey(discovery.Key)
	case StateTimeout:
		return "", ErrTransient
	case StateNotRegisteredYet:
		if err := r.register(ctx); err != nil {
			return "", fmt.Errorf("register key: %w", err)
		}
		return r.resolveAfterRegistration(ctx)
	default:
		return "", ErrUnexpectedState
	}
}

// resolveAfterRegistration re-discovers once, immediately after a
// registration POST. Per spec.md §4.8 this must land on StateRegistered;
// StateTimeout is still transient, and anything else is an error.
func (r *Resolver) resolveAfterRegistration(ctx context.Context) (string, error) {
	discovery, err := r.discover(ctx)
	if err != nil {
		return "", err
	}
	switch discovery.State {
	case StateRegistered:
		return r.cacheKey(discovery.Key)
	case StateTimeout:
		return "", ErrTransient
	default:
		return "", ErrUnexpectedState
	}
}

func (r *Resolver) cacheKey(key string) (string, error) {
	r.mu.Lock()
	r.resolved = true
	r.permanentlyGone = false
	r.key = key
	r.mu.Unlock()
	return key, nil
}

func (r *Resolver) cachePermanentlyUnavailable() (string, error) {
	r.mu.Lock()
	r.resolved = true
	r.permanentlyGone = true
	r.key = ""
	r.mu.Unlock()
	return "", nil
}

func (r *Resolver) discover(ctx context.Context) (Discovery, error) {
	resp, err := r.executor.ExecuteRequest(ctx, "community", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, "https://steamcommunity.com/dev/apikey?l=english", nil)
	})
	if err != nil {
		return Discovery{State: StateTimeout}, nil
	}
	defer resp.Body.Close()

	return discoverState(resp.Body), nil
}

func (r *Resolver) register(ctx context.Context) error {
	sessionID, err := r.sessionID()
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("sessionid", sessionID)
	form.Set("agreeToTerms", "agreed")
	form.Set("domain", fmt.Sprintf("generated.by.%s.localhost", r.appName))
	form.Set("Submit", "Register")
	encoded := form.Encode()

	resp, err := r.executor.ExecuteRequest(ctx, "community", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			"https://steamcommunity.com/dev/registerkey", strings.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return nil
}

func (r *Resolver) sessionID() (string, error) {
	if r.httpClient.Jar == nil {
		return "", errors.New("webapikey: http client has no cookie jar")
	}
	u, _ := url.Parse("https://steamcommunity.com")
	for _, cookie := range r.httpClient.Jar.Cookies(u) {
		if cookie.Name == "sessionid" {
			return cookie.Value, nil
		}
	}
	return "", errors.New("webapikey: sessionid cookie missing")
}
