// Package steamtotp implements Steam's mobile-authenticator cryptography:
// the five-character TOTP login code (C2) and the confirmation-request
// HMAC (C3). Both are pure functions of a shared/identity secret and a
// caller-supplied Steam server time; neither touches the network or a
// clock — see package steamtime for that.
package steamtotp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// authCodeChars is Steam's Crockford-style alphabet: digits and letters
// that are easily confused when handwritten or misread are excluded.
const authCodeChars = "23456789BCDFGHJKMNPQRTVWXY"

// CodeLength is the fixed length of a generated login code.
const CodeLength = 5

// Period is the TOTP time-step, in seconds.
const Period = 30

// ErrInvalidSecret is returned when a shared/identity secret is neither
// valid base64 nor a 40-character hex string.
var ErrInvalidSecret = errors.New("steamtotp: secret is not valid base64 or hex")

// ErrInvalidDeviceID is returned by ValidateDeviceID for a malformed device id.
var ErrInvalidDeviceID = errors.New("steamtotp: invalid device id")

// GenerateAuthCode generates the 5-character Steam Guard login code for the
// given Steam server time (seconds since epoch). sharedSecret is the
// base64- or 40-char-hex-encoded shared_secret from a Steam maFile.
//
// This is a deterministic pure function of (sharedSecret, steamTime/30):
// calling it twice with times in the same 30-second window yields the same
// code.
func GenerateAuthCode(sharedSecret string, steamTime uint32) (string, error) {
	secret, err := decodeSecret(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("decode shared secret: %w", err)
	}
	return generateAuthCode(secret, steamTime), nil
}

func generateAuthCode(secret []byte, steamTime uint32) string {
	counter := uint64(steamTime) / Period

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(buf[:])
	hash := mac.Sum(nil)

	// RFC 4226 dynamic truncation.
	offset := hash[len(hash)-1] & 0x0f
	code := binary.BigEndian.Uint32(hash[offset:offset+4]) & 0x7fffffff

	var result [CodeLength]byte
	for i := range result {
		result[i] = authCodeChars[code%uint32(len(authCodeChars))]
		code /= uint32(len(authCodeChars))
	}

	return string(result[:])
}

// decodeSecret decodes a shared/identity secret from either 40-char hex or
// base64 encoding.
func decodeSecret(secret string) ([]byte, error) {
	if len(secret) == 40 {
		if b, err := hex.DecodeString(secret); err == nil {
			return b, nil
		}
	}
	b, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return b, nil
}

// GenerateConfirmationKey generates the base64 HMAC-SHA1 used to sign a
// mobile confirmation request. identitySecret is the decoded identity_secret
// from a Steam maFile; tag is a short ASCII discriminator such as "conf",
// "list", "allow", or "cancel". Only the first 32 bytes of tag are used.
func GenerateConfirmationKey(identitySecret []byte, steamTime uint32, tag string) string {
	if len(tag) > 32 {
		tag = tag[:32]
	}

	buf := make([]byte, 8+len(tag))
	binary.BigEndian.PutUint64(buf[:8], uint64(steamTime))
	copy(buf[8:], tag)

	mac := hmac.New(sha1.New, identitySecret)
	mac.Write(buf)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// GetDeviceID derives a deterministic "android:<uuid-like>" device id from a
// SteamID64. It is a convenience default for callers that don't already
// have a device id persisted; it is not required by Steam and any value
// that passes ValidateDeviceID is acceptable.
func GetDeviceID(steamID64 uint64) string {
	h := sha1.Sum(fmt.Appendf(nil, "%d", steamID64))
	s := fmt.Sprintf("%x", h)
	return fmt.Sprintf("android:%s-%s-%s-%s-%s",
		s[0:8], s[8:12], s[12:16], s[16:20], s[20:32])
}

// ValidateDeviceID checks a device id against Steam's mobile-app format:
// an optional "<tag>:" prefix, followed by a residual that — after dashes
// are stripped — is non-empty and consists entirely of decimal digits or
// entirely of hexadecimal digits.
func ValidateDeviceID(deviceID string) error {
	residual := deviceID
	if idx := strings.IndexByte(deviceID, ':'); idx >= 0 {
		residual = deviceID[idx+1:]
	}
	residual = strings.ReplaceAll(residual, "-", "")

	if residual == "" {
		return fmt.Errorf("%w: empty residual", ErrInvalidDeviceID)
	}

	if isAllDigits(residual) || isAllHex(residual) {
		return nil
	}

	return fmt.Errorf("%w: %q is neither all-decimal nor all-hex", ErrInvalidDeviceID, residual)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAllHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
