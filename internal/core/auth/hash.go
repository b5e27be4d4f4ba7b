package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/sha3"
)

// digest returns the SHA3-512 digest of a token or code. Stored tokens
// are looked up by digest so the plaintext never touches the database.
func digest(value string) []byte {
	sum := sha3.Sum512([]byte(value))
	return sum[:]
}

// digestEqual compares two digests in constant time.
func digestEqual(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// newSecret generates a high-entropy opaque token or grant code.
func newSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process has no usable entropy
		// source; issuing predictable tokens is not an option.
		panic("auth: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
