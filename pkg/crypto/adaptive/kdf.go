package adaptive

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Key derivation limits.
const (
	MinPassphraseLength = 8
	MinKeyLength        = 16
	SaltLength          = 16
	KeyLength           = 32

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

var (
	ErrPassphraseTooWeak = errors.New("adaptive: passphrase too weak (minimum 8 characters)")
	ErrKeyTooShort       = errors.New("adaptive: key too short (minimum 16 bytes)")
)

// NewSalt returns a random salt for DeriveKey.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("adaptive: salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches a passphrase into a KeyLength key with Argon2id.
// The same passphrase and salt always yield the same key.
func DeriveKey(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("adaptive: salt must be %d bytes", SaltLength)
	}
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, KeyLength), nil
}

// Subkey derives a purpose-bound key from master with HKDF-SHA256.
func Subkey(master []byte, info string) ([]byte, error) {
	if len(master) < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("adaptive: subkey: %w", err)
	}
	return key, nil
}

// Zero overwrites key material.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
