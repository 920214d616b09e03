package common

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
)

// MakeRandHexString returns size random bytes hex-encoded, so the result is
// twice as long as size.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeRandURLToken returns size random bytes encoded with unpadded base64url,
// which keeps the token usable in query strings and Telegram deep links.
func MakeRandURLToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RandIntRange returns a uniformly distributed integer in [min, max].
func RandIntRange(min, max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return n.Int64() + min, nil
}

// IsEmailIdentifier reports whether an identifier is email-shaped. Telegram
// identifiers are plain decimal ids and never contain '@'.
func IsEmailIdentifier(identifier string) bool {
	at := strings.LastIndex(identifier, "@")
	return at > 0 && at < len(identifier)-1
}

// NormalizeIdentifier trims the identifier and lowercases email addresses.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if IsEmailIdentifier(identifier) {
		return strings.ToLower(identifier)
	}
	return identifier
}
