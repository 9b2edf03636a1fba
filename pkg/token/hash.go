package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashPrefix marks a stored key digest, so configuration can hold either a
// key or its digest.
const HashPrefix = "sha256:"

// Hash returns the stored form of key.
func Hash(key string) string {
	h := sha256.Sum256([]byte(key))
	return HashPrefix + hex.EncodeToString(h[:])
}

// Verify reports whether key matches stored, which is either a plain key or
// a Hash result. Comparison is constant time.
func Verify(key, stored string) bool {
	if strings.HasPrefix(stored, HashPrefix) {
		return subtle.ConstantTimeCompare([]byte(Hash(key)), []byte(stored)) == 1
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(stored)) == 1
}

// Keyring holds the accepted keys. An empty Keyring accepts any key.
type Keyring struct {
	stored []string
}

// NewKeyring builds a Keyring from configured entries, skipping blanks.
func NewKeyring(entries []string) *Keyring {
	k := &Keyring{}
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			k.stored = append(k.stored, e)
		}
	}
	return k
}

// Enabled reports whether any key is configured.
func (k *Keyring) Enabled() bool {
	return len(k.stored) > 0
}

// Allow reports whether key is accepted.
func (k *Keyring) Allow(key string) bool {
	if !k.Enabled() {
		return true
	}
	ok := false
	for _, s := range k.stored {
		// No early exit: every entry is compared.
		if Verify(key, s) {
			ok = true
		}
	}
	return ok
}
