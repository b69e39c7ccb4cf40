package steamsession

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SessionIDField names the casing a POST body uses for the stamped
// sessionid value — Steam's endpoints are inconsistent about this.
type SessionIDField string

const (
	SessionIDFieldLower  SessionIDField = "sessionid"
	SessionIDFieldCamel  SessionIDField = "sessionID"
	SessionIDFieldPascal SessionIDField = "SessionID"
)

// GetHTML issues a session-aware GET and returns the response body as a
// string.
func (s *Session) GetHTML(ctx context.Context, host ServiceHost, rawURL string) (string, error) {
	resp, err := s.Execute(ctx, ExecuteOptions{
		Host:                     host,
		CheckSessionPreemptively: true,
		BuildRequest: func(ctx context.Context) (*http.Request, error) {
			return s.newGetRequest(ctx, rawURL)
		},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// GetJSON issues a session-aware GET and decodes the response into out.
func (s *Session) GetJSON(ctx context.Context, host ServiceHost, rawURL string, out any) error {
	resp, err := s.Execute(ctx, ExecuteOptions{
		Host:                     host,
		CheckSessionPreemptively: true,
		BuildRequest: func(ctx context.Context) (*http.Request, error) {
			return s.newGetRequest(ctx, rawURL)
		},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// Head issues a session-aware HEAD and reports whether the final status
// was successful.
func (s *Session) Head(ctx context.Context, host ServiceHost, rawURL string) (bool, error) {
	resp, err := s.Execute(ctx, ExecuteOptions{
		Host:                     host,
		CheckSessionPreemptively: true,
		BuildRequest: func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
		},
	})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// PostForm issues a session-aware POST of form, with the session id
// stamped under field, and returns the response body as a string.
func (s *Session) PostForm(ctx context.Context, host ServiceHost, rawURL string, form url.Values, field SessionIDField) (string, error) {
	resp, err := s.Execute(ctx, ExecuteOptions{
		Host:                     host,
		CheckSessionPreemptively: true,
		BuildRequest: func(ctx context.Context) (*http.Request, error) {
			sessionID := s.sessionIDCookie(host)
			if sessionID == "" {
				return nil, fmt.Errorf("steamsession: no sessionid cookie for %s", host)
			}

			stamped := url.Values{}
			for k, v := range form {
				stamped[k] = v
			}
			stamped.Set(string(field), sessionID)

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(stamped.Encode()))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return req, nil
		},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// PostFormJSON behaves like PostForm but decodes the response as JSON.
func (s *Session) PostFormJSON(ctx context.Context, host ServiceHost, rawURL string, form url.Values, field SessionIDField, out any) error {
	body, err := s.PostForm(ctx, host, rawURL, form, field)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// OrderedPair is one (name, value) entry of an ordered-list POST body, used
// by endpoints (like multiajaxop) that repeat a field name across entries —
// a plain map can't represent that.
type OrderedPair struct {
	Name  string
	Value string
}

// PostOrderedPairs issues a session-aware POST of an ordered list of
// name/value pairs, stamping the session id under field after removing any
// prior pair with that exact (name, value).
func (s *Session) PostOrderedPairs(ctx context.Context, host ServiceHost, rawURL string, pairs []OrderedPair, field SessionIDField) (string, error) {
	resp, err := s.Execute(ctx, ExecuteOptions{
		Host:                     host,
		CheckSessionPreemptively: true,
		BuildRequest: func(ctx context.Context) (*http.Request, error) {
			sessionID := s.sessionIDCookie(host)
			if sessionID == "" {
				return nil, fmt.Errorf("steamsession: no sessionid cookie for %s", host)
			}

			stamped := make([]OrderedPair, 0, len(pairs)+1)
			for _, p := range pairs {
				if p.Name == string(field) && p.Value == sessionID {
					continue
				}
				stamped = append(stamped, p)
			}
			stamped = append(stamped, OrderedPair{Name: string(field), Value: sessionID})

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encodeOrdered(stamped)))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return req, nil
		},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// encodeOrdered form-encodes pairs preserving their original order and
// repeated names, unlike url.Values.Encode (which sorts by key).
func encodeOrdered(pairs []OrderedPair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

func (s *Session) newGetRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
}
