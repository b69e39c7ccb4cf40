package steamcommunity

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestCommunity(t *testing.T, serverURL string) *Community {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}

	// Set cookies on both URLs so ensureInit finds them on steamcommunity.com.
	for _, raw := range []string{serverURL, "https://steamcommunity.com"} {
		u, _ := url.Parse(raw)
		jar.SetCookies(u, []*http.Cookie{
			{Name: "sessionid", Value: "test-session-id"},
			{Name: "steamLoginSecure", Value: "76561198000000000%7C%7Ctoken"},
		})
	}

	c, err := New(WithHTTPClient(&http.Client{Jar: jar}))
	if err != nil {
		t.Fatalf("create community: %v", err)
	}
	return c
}

func rewriteHostTransport(srv *httptest.Server) http.RoundTripper {
	return &rewriteTransport{server: srv, base: srv.Client().Transport}
}

type rewriteTransport struct {
	server *httptest.Server
	base   http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	srvURL, _ := url.Parse(t.server.URL)
	req.URL.Scheme = srvURL.Scheme
	req.URL.Host = srvURL.Host
	return t.base.RoundTrip(req)
}
