package steamsession

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// installWebCookies sets sessionid, steamLogin, steamLoginSecure, and
// timezoneOffset on every host in webCookieHosts, the final steps of the
// auth handshake (C7).
func (s *Session) installWebCookies(token, tokenSecure string) {
	_, offset := time.Now().Zone()
	tzValue := fmt.Sprintf("%d,0", offset)

	for _, host := range webCookieHosts {
		u := &url.URL{Scheme: "https", Host: serviceHostNames[host], Path: "/"}
		s.httpClient.Jar.SetCookies(u, []*http.Cookie{
			{Name: "sessionid", Value: s.sessionID, Path: "/"},
			{Name: "steamLogin", Value: token, Path: "/"},
			{Name: "steamLoginSecure", Value: tokenSecure, Path: "/"},
			{Name: "timezoneOffset", Value: tzValue, Path: "/"},
		})
	}
}

// sessionIDCookie returns the sessionid cookie value set on host's jar, or
// empty if none is present. The executor treats an absent sessionid as a
// hard failure for any POST that requires a session.
func (s *Session) sessionIDCookie(host ServiceHost) string {
	u := &url.URL{Scheme: "https", Host: serviceHostNames[host]}
	for _, c := range s.httpClient.Jar.Cookies(u) {
		if c.Name == "sessionid" {
			return c.Value
		}
	}
	return ""
}
