// Package identity decides who is talking.
package identity

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"strings"
)

const (
	DefaultHeader = "Username"
	Unknown       = "unknown@unknown.com"
)

// Resolve returns the identity for a request. With anonymous access every
// call mints a fresh pseudo-random address; callers keep the result for the
// lifetime of the connection. Otherwise the identity header is used, falling
// back to Unknown.
func Resolve(anonymousAllowed bool, header http.Header, headerName string) string {
	if anonymousAllowed {
		if id, err := randomEmail(); err == nil {
			return id
		}
		return Unknown
	}
	if headerName == "" {
		headerName = DefaultHeader
	}
	if v := strings.TrimSpace(header.Get(headerName)); v != "" {
		return v
	}
	return Unknown
}

const letters = "abcdefghijklmnopqrstuvwxyz0123456789"

// generate a random 11 character mailbox
func randomEmail() (string, error) {
	out := make([]byte, 11)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		out[i] = letters[n.Int64()]
	}
	return string(out) + "@anonymous.local", nil
}
