// Package identity derives the natural key used to decide whether two scraped
// records describe the same profile.
package identity

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ErrEmptyURL is returned for input that has no usable URL.
var ErrEmptyURL = eris.New("identity: empty profile url")

// Normalize returns the canonical key for a profile URL: everything before
// the first '?'. Two URLs that differ only in their query string yield the
// same key.
func Normalize(rawURL string) (string, error) {
	key := rawURL
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyURL
	}
	return key, nil
}

// SameProfile reports whether a and b normalize to the same non-empty key.
func SameProfile(a, b string) bool {
	ka, err := Normalize(a)
	if err != nil {
		return false
	}
	kb, err := Normalize(b)
	if err != nil {
		return false
	}
	return ka == kb
}
