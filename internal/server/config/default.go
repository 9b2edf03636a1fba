// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr          = "127.0.0.1:8000"
	DefaultReadHeaderTimeout = 10 * time.Second

	DefaultMaxConcurrent = 100
	DefaultMaxIdleAge    = 3600 * time.Second
	DefaultSweepInterval = 60 * time.Second

	DefaultDataDir        = "/var/lib/browserbox"
	DefaultUploadTTL      = 24 * time.Hour
	DefaultMaxArchiveSize = 2 << 30

	DefaultChunkSize        = 1 << 20
	DefaultTransportTimeout = 5 * time.Minute

	DefaultRateLimit = 50

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:              DefaultHTTPAddr,
				ReadHeaderTimeout: DefaultReadHeaderTimeout,
			},
		},
		Pool: PoolSection{
			MaxConcurrent: DefaultMaxConcurrent,
			MaxIdleAge:    DefaultMaxIdleAge,
			SweepInterval: DefaultSweepInterval,
		},
		Storage: StorageSection{
			DataDir:        DefaultDataDir,
			UploadTTL:      DefaultUploadTTL,
			MaxArchiveSize: DefaultMaxArchiveSize,
		},
		Browser: BrowserSection{
			Headless: true,
			Stealth:  true,
		},
		Transport: TransportSection{
			ChunkSize: DefaultChunkSize,
			Timeout:   DefaultTransportTimeout,
		},
		Security: SecuritySection{
			RateLimit:          DefaultRateLimit,
			CORSAllowedOrigins: []string{"*"},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
