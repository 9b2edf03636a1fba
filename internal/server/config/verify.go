// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyPool(&cfg.Pool); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyTransport(&cfg.Transport); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if cfg.HTTP.PublicURL != "" {
		u, err := url.Parse(cfg.HTTP.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("server.http.public_url must be an absolute http(s) URL")
		}
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("tls file %s: %w", f, err)
		}
	}
	return nil
}

func verifyPool(cfg *PoolSection) error {
	if cfg.MaxConcurrent < 1 {
		return errors.New("pool.max_concurrent must be at least 1")
	}
	if cfg.MaxIdleAge <= 0 {
		return errors.New("pool.max_idle_age must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("pool.sweep_interval must be positive")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	if cfg.UploadTTL <= 0 {
		return errors.New("storage.upload_ttl must be positive")
	}
	if cfg.MaxArchiveSize <= 0 {
		return errors.New("storage.max_archive_size must be positive")
	}
	return nil
}

func verifyTransport(cfg *TransportSection) error {
	if cfg.ChunkSize != domain.ChunkSize {
		return fmt.Errorf("transport.chunk_size must be %d", domain.ChunkSize)
	}
	if cfg.Timeout <= 0 {
		return errors.New("transport.timeout must be positive")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.RateLimit < 0 {
		return errors.New("security.rate_limit must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
