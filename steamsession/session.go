// Package steamsession implements the classic Steam mobile-authenticator web
// session: the RSA/AES login handshake (C7), the cookie-jar-backed session
// manager that detects and serializes refresh of an expired session (C5),
// and the generic request executor every higher-level package builds its
// HTTP calls on top of (C6).
package steamsession

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/steamforge/mobileauth/ratelimit"
	"github.com/steamforge/mobileauth/steamapi"
	"github.com/steamforge/mobileauth/steamid"
)

var (
	ErrNotIndividualAccount  = errors.New("steamsession: steam id is not an individual account")
	ErrInvalidUniverse       = errors.New("steamsession: universe is not valid")
	ErrEmptyNonce            = errors.New("steamsession: web api user nonce is empty")
	ErrUnknownRSAKey         = errors.New("steamsession: no RSA public key for universe")
	ErrInvalidParentalCode   = errors.New("steamsession: parental code must be exactly 4 characters")
	ErrSessionNotInitialized = errors.New("steamsession: session not initialized")
	ErrRefreshFailed         = errors.New("steamsession: session refresh failed")
)

// Session owns one account's web cookies, the derived rate limiters for
// each service host, and the session-expiry/refresh state machine (C5).
// A Session is safe for concurrent use.
type Session struct {
	httpClient *http.Client
	steamAPI   *steamapi.API
	logger     *slog.Logger
	limiter    *ratelimit.Limiter

	connectionTimeout time.Duration
	refresher         SessionRefresher

	mu                 sync.Mutex // session_sem: serializes IsSessionExpired/RefreshSession
	initialized        bool
	lastSessionCheck   time.Time
	lastSessionRefresh time.Time
	vanityURL          string // guarded by mu; settable via SetVanityURL (OnVanityURLChanged)

	SteamID   steamid.SteamID
	sessionID string // base64(decimal steamid): stamped into cookies and POST bodies
}

// New constructs a Session with no active login; call Login to perform the
// auth handshake before issuing authenticated requests.
func New(opts ...Option) (*Session, error) {
	cfg := config{
		httpClient:        http.DefaultClient,
		logger:            slog.Default(),
		maxConnections:    ratelimit.DefaultMaxConnections,
		connectionTimeout: 90 * time.Second,
		webLimiterDelay:   ratelimit.DefaultDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		httpClient:        cfg.httpClient,
		logger:            cfg.logger,
		connectionTimeout: cfg.connectionTimeout,
		refresher:         cfg.refresher,
	}

	if s.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		s.httpClient.Jar = jar
	}

	var err error
	s.steamAPI, err = steamapi.New(steamapi.WithHTTPClient(s.httpClient))
	if err != nil {
		return nil, fmt.Errorf("init steamapi: %w", err)
	}

	s.limiter = ratelimit.New()
	for _, host := range []ServiceHost{ServiceCommunity, ServiceStore, ServiceHelp, ServiceWebAPI} {
		s.limiter.AddService(string(host), cfg.maxConnections, cfg.webLimiterDelay)
	}

	return s, nil
}

// LoginOptions carries the inputs to the classic mobile-auth handshake.
type LoginOptions struct {
	SteamID         steamid.SteamID
	Universe        steamid.EUniverse
	WebAPIUserNonce string
	// ParentalCode, if non-empty, must be exactly 4 characters; the
	// handshake unlocks the family-view parental gate on community and
	// store as its final step.
	ParentalCode string
	// VanityURL, if set, is the account's custom profile URL slug
	// ("/id/<vanity>"). Steam's self-profile redirect quirk can land on
	// either the numeric or the vanity profile path, so both are
	// recognized once this is known; it may also change later via
	// SetVanityURL.
	VanityURL string
}

// Login performs the RSA/AES mobile-auth handshake (C7): it encrypts a
// fresh session key and the web API user nonce, calls
// ISteamUserAuth/AuthenticateUser, and installs the resulting cookies on
// every web host this Session manages. On success the session is marked
// initialized and ready for use by the request executor.
func (s *Session) Login(ctx context.Context, opts LoginOptions) error {
	if !opts.SteamID.IsIndividual() {
		return ErrNotIndividualAccount
	}
	if !opts.Universe.IsValidUniverse() {
		return ErrInvalidUniverse
	}
	if opts.WebAPIUserNonce == "" {
		return ErrEmptyNonce
	}
	if opts.ParentalCode != "" && len(opts.ParentalCode) != 4 {
		return ErrInvalidParentalCode
	}

	rsaKey, ok := lookupRSAPublicKey(opts.Universe)
	if !ok {
		return ErrUnknownRSAKey
	}

	sessionKey := make([]byte, 32)
	if _, err := rand.Read(sessionKey); err != nil {
		return fmt.Errorf("generate session key: %w", err)
	}

	encryptedSessionKey, err := rsaEncrypt(rsaKey.mod, rsaKey.exp, sessionKey)
	if err != nil {
		return fmt.Errorf("encrypt session key: %w", err)
	}

	encryptedLoginKey, err := symmetricEncrypt(sessionKey, []byte(opts.WebAPIUserNonce))
	if err != nil {
		return fmt.Errorf("encrypt login key: %w", err)
	}

	result, err := s.steamAPI.AuthenticateUser(ctx, opts.SteamID.ToSteamID64(), encryptedLoginKey, encryptedSessionKey)
	if err != nil {
		return fmt.Errorf("authenticate user: %w", err)
	}

	s.SteamID = opts.SteamID
	s.sessionID = base64.StdEncoding.EncodeToString([]byte(opts.SteamID.String()))

	s.installWebCookies(result.Token, result.TokenSecure)

	if opts.ParentalCode != "" {
		if err := s.unlockParentalGate(ctx, opts.ParentalCode); err != nil {
			return fmt.Errorf("parental unlock: %w", err)
		}
	}

	s.mu.Lock()
	now := time.Now()
	s.lastSessionCheck = now
	s.lastSessionRefresh = now
	s.initialized = true
	s.vanityURL = opts.VanityURL
	s.mu.Unlock()

	s.logger.Info("steamsession: login succeeded", "steam_id", s.SteamID.String())
	return nil
}

// HTTPClient returns the session's underlying HTTP client. Its cookie jar
// holds every cookie installed by Login, so it can be handed directly to
// steamcommunity.Community or other per-host clients.
func (s *Session) HTTPClient() *http.Client {
	return s.httpClient
}

// Initialized reports whether the session currently believes its cookies
// are valid, without performing a network check.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// ProfilePath returns the absolute community profile path for the logged-in
// account, used to recognize Steam's self-profile-redirect quirk.
func (s *Session) ProfilePath() string {
	return s.SteamID.ProfilePath()
}

// SetVanityURL updates the account's custom profile URL slug, e.g. in
// response to an OnVanityURLChanged notification from the owning bot
// facade. Pass "" to clear it.
func (s *Session) SetVanityURL(vanity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vanityURL = vanity
}

// VanityURL returns the account's currently known custom profile URL slug,
// or "" if none is set.
func (s *Session) VanityURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vanityURL
}

// VanityPath returns the absolute "/id/<vanity>" profile path for the
// account's vanity URL, or "" if none is set.
func (s *Session) VanityPath() string {
	vanity := s.VanityURL()
	if vanity == "" {
		return ""
	}
	return "/id/" + vanity
}
