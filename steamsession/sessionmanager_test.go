package steamsession

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/steamforge/mobileauth/steamid"
)

// hostRewriter redirects requests bound for a fixed hostname to a local
// test server while leaving the URL path untouched, so code under test
// that checks req.URL.Host can be exercised against httptest.
type hostRewriter struct {
	base   http.RoundTripper
	target *url.URL
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = h.target.Scheme
	req.URL.Host = h.target.Host
	return h.base.RoundTrip(req)
}

func newTestSession(t *testing.T, handler http.Handler) (*Session, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	tsURL, _ := url.Parse(ts.URL)
	client := ts.Client()
	client.Transport = &hostRewriter{base: client.Transport, target: tsURL}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	s := &Session{httpClient: client}
	return s, ts
}

func TestIsSessionExpiredHealthy(t *testing.T) {
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	s.initialized = true

	expired, err := s.IsSessionExpired(context.Background())
	if err != nil {
		t.Fatalf("IsSessionExpired() error: %v", err)
	}
	if expired {
		t.Fatal("IsSessionExpired() = true, want false")
	}
	if s.lastSessionRefresh.IsZero() {
		t.Fatal("lastSessionRefresh not updated on healthy check")
	}
}

func TestIsSessionExpiredLoginRedirect(t *testing.T) {
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/login/home")
		w.WriteHeader(http.StatusFound)
	}))
	s.initialized = true

	expired, err := s.IsSessionExpired(context.Background())
	if err != nil {
		t.Fatalf("IsSessionExpired() error: %v", err)
	}
	if !expired {
		t.Fatal("IsSessionExpired() = false, want true")
	}
	if s.initialized {
		t.Fatal("initialized should be false after expiry detection")
	}
}

func TestIsSessionExpiredDedup(t *testing.T) {
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	s.initialized = true
	// Simulate another caller having already checked in the future.
	s.lastSessionCheck = time.Now().Add(time.Hour)

	expired, err := s.IsSessionExpired(context.Background())
	if err != nil {
		t.Fatalf("IsSessionExpired() error: %v", err)
	}
	if expired {
		t.Fatal("deduplicated check should report current (initialized) state: false")
	}
}

func TestRefreshSessionNoRefresher(t *testing.T) {
	s := &Session{httpClient: http.DefaultClient}

	ok, err := s.RefreshSession(context.Background())
	if ok {
		t.Fatal("RefreshSession() = true with no refresher configured, want false")
	}
	if err == nil {
		t.Fatal("expected error with no refresher configured")
	}
}

type stubRefresher struct {
	err   error
	calls int
}

func (r *stubRefresher) RefreshSession(ctx context.Context) error {
	r.calls++
	return r.err
}

func TestRefreshSessionSuccess(t *testing.T) {
	refresher := &stubRefresher{}
	s := &Session{httpClient: http.DefaultClient, refresher: refresher}

	ok, err := s.RefreshSession(context.Background())
	if err != nil {
		t.Fatalf("RefreshSession() error: %v", err)
	}
	if !ok {
		t.Fatal("RefreshSession() = false, want true")
	}
	if !s.initialized {
		t.Fatal("initialized should be true after successful refresh")
	}
	if refresher.calls != 1 {
		t.Fatalf("refresher called %d times, want 1", refresher.calls)
	}
}

func TestRefreshSessionDedup(t *testing.T) {
	refresher := &stubRefresher{}
	s := &Session{httpClient: http.DefaultClient, refresher: refresher}

	now := time.Now()
	s.lastSessionCheck = now
	s.lastSessionRefresh = now
	// Simulate a caller whose triggeredAt predates the last check.
	s.mu.Lock()
	s.lastSessionCheck = now.Add(time.Hour)
	s.lastSessionRefresh = now.Add(time.Hour)
	s.mu.Unlock()

	ok, err := s.RefreshSession(context.Background())
	if err != nil {
		t.Fatalf("RefreshSession() error: %v", err)
	}
	if !ok {
		t.Fatal("deduplicated refresh should report success since check == refresh")
	}
	if refresher.calls != 0 {
		t.Fatalf("refresher should not be called when deduplicated, got %d calls", refresher.calls)
	}
}

func TestIsSessionExpiredURI(t *testing.T) {
	tests := []struct {
		name string
		uri  *url.URL
		want bool
	}{
		{"nil uri", nil, true},
		{"login path", &url.URL{Path: "/login"}, true},
		{"login subpath", &url.URL{Path: "/login/home"}, true},
		{"lostauth host", &url.URL{Host: "lostauth"}, true},
		{"healthy", &url.URL{Path: "/account", Host: "store.steampowered.com"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSessionExpiredURI(tt.uri); got != tt.want {
				t.Errorf("isSessionExpiredURI(%v) = %v, want %v", tt.uri, got, tt.want)
			}
		})
	}
}

func TestIsSelfProfile(t *testing.T) {
	s := &Session{SteamID: steamid.FromSteamID64(76561198012345678)}

	if !s.isSelfProfile(&url.URL{Path: "/profiles/76561198012345678"}) {
		t.Error("isSelfProfile() = false for matching profile path, want true")
	}
	if s.isSelfProfile(&url.URL{Path: "/profiles/1"}) {
		t.Error("isSelfProfile() = true for unrelated profile path, want false")
	}
	if s.isSelfProfile(nil) {
		t.Error("isSelfProfile(nil) = true, want false")
	}
	if s.isSelfProfile(&url.URL{Path: "/id/samplevanity"}) {
		t.Error("isSelfProfile() = true for vanity path before SetVanityURL, want false")
	}

	s.SetVanityURL("samplevanity")
	if !s.isSelfProfile(&url.URL{Path: "/id/samplevanity"}) {
		t.Error("isSelfProfile() = false for matching vanity path after SetVanityURL, want true")
	}
	if s.isSelfProfile(&url.URL{Path: "/id/someoneelse"}) {
		t.Error("isSelfProfile() = true for unrelated vanity path, want false")
	}
}
