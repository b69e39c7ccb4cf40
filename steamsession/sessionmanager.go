package steamsession

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IsSessionExpired performs the expiry check (C5): a HEAD to
// store.steampowered.com/account, classifying the final redirect URI.
// Concurrent callers deduplicate via the session mutex: a caller whose
// triggeredAt instant is at or before the last recorded check skips the
// HTTP round trip entirely and reports the session's current state. A
// non-nil error means the HTTP call itself failed, not that the session is
// expired.
func (s *Session) IsSessionExpired(ctx context.Context) (bool, error) {
	triggeredAt := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !triggeredAt.After(s.lastSessionCheck) {
		return !s.initialized, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://store.steampowered.com/account", nil)
	if err != nil {
		return false, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	finalURI := resp.Request.URL
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc, err := resp.Location(); err == nil {
			finalURI = loc
		}
	}
	expired := isSessionExpiredURI(finalURI)

	s.lastSessionCheck = time.Now()
	if expired {
		s.initialized = false
	} else {
		s.lastSessionRefresh = time.Now()
	}

	return expired, nil
}

// RefreshSession performs refresh_session (C5): same deduplication
// discipline as IsSessionExpired, but the dedup return value is inverted —
// a caller that loses the race reports success iff the last check saw the
// session healthy (lastSessionCheck == lastSessionRefresh). The caller that
// wins marks the session uninitialized, delegates renewal to the
// configured SessionRefresher, and on success restores initialized state.
func (s *Session) RefreshSession(ctx context.Context) (bool, error) {
	triggeredAt := time.Now()

	s.mu.Lock()
	if !triggeredAt.After(s.lastSessionCheck) {
		success := s.lastSessionCheck.Equal(s.lastSessionRefresh)
		s.mu.Unlock()
		return success, nil
	}

	s.initialized = false
	refresher := s.refresher
	s.mu.Unlock()

	if refresher == nil {
		return false, ErrRefreshFailed
	}

	err := refresher.RefreshSession(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return false, err
	}

	now := time.Now()
	s.lastSessionRefresh = now
	s.lastSessionCheck = now
	s.initialized = true
	return true, nil
}

// isSessionExpiredURI reports whether uri is Steam's terminal redirect
// target for an unauthenticated request: a login page or the "lostauth"
// host.
func isSessionExpiredURI(uri *url.URL) bool {
	if uri == nil {
		return true
	}
	return strings.HasPrefix(uri.Path, "/login") || uri.Host == "lostauth"
}

// isSelfProfile reports whether uri's path matches the session's own
// absolute community profile path, numeric ("/profiles/<steamid>") or
// vanity ("/id/<vanity>") — Steam occasionally returns the user's own
// profile as the terminal URI for unrelated requests.
func (s *Session) isSelfProfile(uri *url.URL) bool {
	if uri == nil {
		return false
	}
	if uri.Path == s.ProfilePath() {
		return true
	}
	if vanityPath := s.VanityPath(); vanityPath != "" && uri.Path == vanityPath {
		return true
	}
	return false
}
