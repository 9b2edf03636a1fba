// Package config defines the server configuration structure.
package config

import (
	"strings"

	"github.com/Hommy-master/browserbox/pkg/token"
)

// Sanitize returns a copy of the config with secrets masked for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Storage.EncryptionPassphrase != "" {
		sanitized.Storage.EncryptionPassphrase = maskSecret(sanitized.Storage.EncryptionPassphrase)
	}
	if len(cfg.Security.APIKeys) > 0 {
		keys := make([]string, len(cfg.Security.APIKeys))
		for i, k := range cfg.Security.APIKeys {
			keys[i] = token.Mask(k)
		}
		sanitized.Security.APIKeys = keys
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
