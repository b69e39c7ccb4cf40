package steamapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// AuthenticateUserResult is the response to ISteamUserAuth/AuthenticateUser:
// the two cookie values a classic mobile-auth handshake installs on every
// web host (steamLogin and steamLoginSecure).
type AuthenticateUserResult struct {
	Token       string // steamLogin cookie value
	TokenSecure string // steamLoginSecure cookie value
}

// AuthenticateUser calls ISteamUserAuth/AuthenticateUser/v1 with an
// RSA-encrypted session key and an AES-encrypted login key (see package
// steamsession for the crypto that produces these values). The nonce
// consumed by this call is single-use: a failed call means the caller must
// fetch a fresh login key rather than retry with the same one.
func (a *API) AuthenticateUser(ctx context.Context, steamID uint64, encryptedLoginKey, sessionKey []byte) (*AuthenticateUserResult, error) {
	form := url.Values{}
	form.Set("steamid", strconv.FormatUint(steamID, 10))
	form.Set("sessionkey", string(sessionKey))
	form.Set("encrypted_loginkey", string(encryptedLoginKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.steampowered.com/ISteamUserAuth/AuthenticateUser/v1/",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result struct {
		Authenticateuser struct {
			Token       string `json:"token"`
			Tokensecure string `json:"tokensecure"`
		} `json:"authenticateuser"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if result.Authenticateuser.Token == "" || result.Authenticateuser.Tokensecure == "" {
		return nil, errors.New("empty token in AuthenticateUser response")
	}

	return &AuthenticateUserResult{
		Token:       result.Authenticateuser.Token,
		TokenSecure: result.Authenticateuser.Tokensecure,
	}, nil
}
