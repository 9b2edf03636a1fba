package token

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

const (
	// Prefix marks BrowserBox API keys.
	Prefix = "bbk_"

	// RandomBytes is the entropy carried by a generated key.
	RandomBytes = 32

	// KeyLength is the length of a generated key: prefix plus 43 base64 characters.
	KeyLength = len(Prefix) + 43
)

// Generate returns a new API key of the form bbk_<base64url>.
func Generate() (string, error) {
	b := make([]byte, RandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return Prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// IsWellFormed reports whether key has the generated key format.
func IsWellFormed(key string) bool {
	body, ok := strings.CutPrefix(key, Prefix)
	if !ok || len(key) != KeyLength {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(body)
	return err == nil && len(b) == RandomBytes
}

// Mask shortens key for logs, keeping the prefix and the last four characters.
func Mask(key string) string {
	if len(key) <= len(Prefix)+4 {
		return "****"
	}
	head := ""
	if strings.HasPrefix(key, Prefix) {
		head = Prefix
	}
	return head + "****" + key[len(key)-4:]
}
