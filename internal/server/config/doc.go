// Package config provides server configuration for BrowserBox.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking secrets for logs
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// BROWSERBOX_ environment variables and flag overrides.
package config
