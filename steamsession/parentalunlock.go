package steamsession

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const maxParentalUnlockTries = 5

// unlockParentalGate unlocks the family-view parental gate on community and
// store in parallel, per the auth handshake's final optional step. This
// does not go through the session-aware executor — the session has not yet
// become initialized when this runs — so retries and redirect
// classification are handled directly here.
func (s *Session) unlockParentalGate(ctx context.Context, pin string) error {
	hosts := []ServiceHost{ServiceCommunity, ServiceStore}

	var wg sync.WaitGroup
	errs := make([]error, len(hosts))

	for i, host := range hosts {
		wg.Add(1)
		go func(i int, host ServiceHost) {
			defer wg.Done()
			errs[i] = s.unlockParentalGateOnHost(ctx, host, pin, maxParentalUnlockTries)
		}(i, host)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("%s: %w", hosts[i], err)
		}
	}
	return nil
}

func (s *Session) unlockParentalGateOnHost(ctx context.Context, host ServiceHost, pin string, triesLeft int) error {
	if triesLeft <= 0 {
		return ErrMaxTriesZero
	}

	sessionID := s.sessionIDCookie(host)
	if sessionID == "" {
		return fmt.Errorf("steamsession: no sessionid cookie for %s", host)
	}

	form := url.Values{}
	form.Set("pin", pin)
	form.Set("sessionid", sessionID)

	reqURL := fmt.Sprintf("https://%s/parental/ajaxunlock", serviceHostNames[host])
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	finalURI := resp.Request.URL
	if isSessionExpiredURI(finalURI) {
		return fmt.Errorf("steamsession: parental unlock hit expired session on %s", host)
	}
	if s.isSelfProfile(finalURI) {
		return s.unlockParentalGateOnHost(ctx, host, pin, triesLeft-1)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, host)
	}

	return nil
}
