package steamsession

// MobileUA is the Steam mobile app's User-Agent string, sent on every
// request the executor issues — confirmation and API-key pages behave
// differently for browser vs. mobile-app user agents.
const MobileUA = "Dalvik/2.1.0 (Linux; U; Android 9; Valve Steam App Version/3)"
