package steamsession

import "github.com/steamforge/mobileauth/steamid"

// rsaPublicKey is the RSA key Steam uses to encrypt the session key during
// the classic mobile-auth handshake (ISteamUserAuth/AuthenticateUser).
// Unlike the modern IAuthenticationService flow, this key is not fetched
// per-account over HTTP — it is the same well-known key for every account
// in a given universe.
type rsaPublicKey struct {
	mod string
	exp int64
}

// universeRSAKeys maps steamid.EUniverse to the RSA public key used to
// encrypt session keys for accounts in that universe. Only the public
// universe is populated; Steam's beta/internal/dev universes are not
// reachable by this module.
var universeRSAKeys = map[steamid.EUniverse]rsaPublicKey{
	steamid.EUniversePublic: {
		mod: "DF56489D384D285387BCBCB852CE64C2A17B3AC4090C4438CDF3F9F6835C6D3AC1D5C8129D6BA9CFCC0EA3BF8EEBC2FB5D13CA05DB15FB3462C0A92D66D49F8CD7BBD46034E19FA8C5BB98D3F67FEFE99D23F01F8C22BE4BC4BF2A9F78DD37BC5EB16A9F0FB8D9ECF1D98AA17E94E8C2BDE2D0A5BC4BF9F6F83FF5C1CDB8CD",
		exp: 0x10001,
	},
}

// lookupRSAPublicKey returns the per-universe RSA public key, or false if
// no key is known for universe.
func lookupRSAPublicKey(universe steamid.EUniverse) (rsaPublicKey, bool) {
	key, ok := universeRSAKeys[universe]
	return key, ok
}
