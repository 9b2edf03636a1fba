// Package config defines the server configuration structure.
package config

import (
	"strings"
	"time"
)

// ServerConfig is the root configuration for browserbox-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Pool      PoolSection      `koanf:"pool"`
	Storage   StorageSection   `koanf:"storage"`
	Browser   BrowserSection   `koanf:"browser"`
	Transport TransportSection `koanf:"transport"`
	Security  SecuritySection  `koanf:"security"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`

	// PublicURL is the externally reachable base URL used in archive
	// locators. Empty derives it from the request.
	PublicURL string `koanf:"public_url"`

	TLSCertFile       string        `koanf:"tls_cert_file"`
	TLSKeyFile        string        `koanf:"tls_key_file"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
}

// PoolSection configures the browser pool.
type PoolSection struct {
	MaxConcurrent int           `koanf:"max_concurrent"`
	MaxIdleAge    time.Duration `koanf:"max_idle_age"`
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// WorkDir holds materialized environments. Empty means
	// <storage.data_dir>/instances.
	WorkDir string `koanf:"work_dir"`
}

// StorageSection configures the archive store.
type StorageSection struct {
	DataDir              string        `koanf:"data_dir"`
	EncryptionPassphrase string        `koanf:"encryption_passphrase"`
	UploadTTL            time.Duration `koanf:"upload_ttl"`
	MaxArchiveSize       int64         `koanf:"max_archive_size"`
}

// BrowserSection configures the automation engine.
type BrowserSection struct {
	Bin       string   `koanf:"bin"`
	Headless  bool     `koanf:"headless"`
	Stealth   bool     `koanf:"stealth"`
	ExtraArgs []string `koanf:"extra_args"`
}

// TransportSection configures archive downloads.
type TransportSection struct {
	ChunkSize int64         `koanf:"chunk_size"`
	Timeout   time.Duration `koanf:"timeout"`
	CAFile    string        `koanf:"ca_file"`
	S3        S3Config      `koanf:"s3"`
}

// S3Config configures the s3:// backend.
type S3Config struct {
	Region       string `koanf:"region"`
	Endpoint     string `koanf:"endpoint"`
	Anonymous    bool   `koanf:"anonymous"`
	UsePathStyle bool   `koanf:"use_path_style"`
}

// SecuritySection configures authentication and request limits.
type SecuritySection struct {
	// APIKeys are accepted keys, plain or "sha256:<hex>". Empty accepts any request.
	APIKeys []string `koanf:"api_keys"`

	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// InstanceWorkDir returns the effective pool work directory.
func (c *ServerConfig) InstanceWorkDir() string {
	if c.Pool.WorkDir != "" {
		return c.Pool.WorkDir
	}
	return c.Storage.DataDir + "/instances"
}

// BaseURL returns the public URL, or one derived from the listen address.
func (c *ServerConfig) BaseURL() string {
	if c.Server.HTTP.PublicURL != "" {
		return strings.TrimRight(c.Server.HTTP.PublicURL, "/")
	}
	scheme := "http"
	if c.Server.HTTP.TLSCertFile != "" {
		scheme = "https"
	}
	host := c.Server.HTTP.Addr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	} else if strings.HasPrefix(host, "0.0.0.0:") {
		host = "127.0.0.1" + strings.TrimPrefix(host, "0.0.0.0")
	}
	return scheme + "://" + host
}
