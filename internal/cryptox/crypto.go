// Package cryptox holds the hashing and MAC primitives used by the auth
// flows, plus password hashing.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SHA256Hex returns the hex-encoded SHA-256 digest of s.
func SHA256Hex(s string) string {
	return hex.EncodeToString(SHA256([]byte(s)))
}

// HMACSHA256 signs msg with key.
func HMACSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// EqualHex compares a MAC against a hex string supplied by a client. The
// comparison is case-insensitive and takes the same time for every input of
// the right length. Strings that are not valid hex never match.
func EqualHex(mac []byte, suppliedHex string) bool {
	supplied, err := hex.DecodeString(suppliedHex)
	if err != nil {
		return false
	}
	return hmac.Equal(mac, supplied)
}
