package steamsession

// ServiceHost names one of the web hosts a Session maintains cookies and
// rate limits for. See package ratelimit for how these keys map onto
// limiter buckets.
type ServiceHost string

const (
	ServiceCommunity ServiceHost = "community"
	ServiceStore     ServiceHost = "store"
	ServiceHelp      ServiceHost = "help"
	ServiceWebAPI    ServiceHost = "webapi"
)

var serviceHostNames = map[ServiceHost]string{
	ServiceCommunity: "steamcommunity.com",
	ServiceStore:     "store.steampowered.com",
	ServiceHelp:      "help.steampowered.com",
	ServiceWebAPI:    "api.steampowered.com",
}

// webCookieHosts are the three hosts the auth handshake installs session
// cookies on (the WebAPI host never receives cookies; it authenticates
// WebAPI calls by key or access token).
var webCookieHosts = []ServiceHost{ServiceCommunity, ServiceHelp, ServiceStore}
