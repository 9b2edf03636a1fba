package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Hommy-master/browserbox/internal/infra/confloader"
)

// EnvPrefix is the environment prefix of client settings.
const EnvPrefix = "BROWSERBOX_CLI_"

// DefaultServerURL is used when neither a flag nor the file names a server.
const DefaultServerURL = "http://localhost:8000"

// CLIConfig is the configuration for browserbox-cli.
type CLIConfig struct {
	ServerURL string        `koanf:"server_url" yaml:"server_url" json:"server_url"`
	APIKey    string        `koanf:"api_key" yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Output    string        `koanf:"output" yaml:"output" json:"output"`
	CAFile    string        `koanf:"ca_file" yaml:"ca_file,omitempty" json:"ca_file,omitempty"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout" json:"timeout"`

	Browser BrowserConfig `koanf:"browser" yaml:"browser" json:"browser"`
	Capture CaptureConfig `koanf:"capture" yaml:"capture" json:"capture"`
	S3      S3Config      `koanf:"s3" yaml:"s3" json:"s3"`
}

// BrowserConfig configures the local engine used by capture.
type BrowserConfig struct {
	Bin       string   `koanf:"bin" yaml:"bin,omitempty" json:"bin,omitempty"`
	Stealth   bool     `koanf:"stealth" yaml:"stealth" json:"stealth"`
	ExtraArgs []string `koanf:"extra_args" yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
}

// CaptureConfig holds capture defaults.
type CaptureConfig struct {
	OutputDir string `koanf:"output_dir" yaml:"output_dir" json:"output_dir"`
	StartURL  string `koanf:"start_url" yaml:"start_url,omitempty" json:"start_url,omitempty"`
}

// S3Config configures s3:// uploads and downloads. Credentials come from
// the standard AWS chain.
type S3Config struct {
	Region       string `koanf:"region" yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint     string `koanf:"endpoint" yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	UsePathStyle bool   `koanf:"use_path_style" yaml:"use_path_style" json:"use_path_style"`
	Anonymous    bool   `koanf:"anonymous" yaml:"anonymous" json:"anonymous"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		ServerURL: DefaultServerURL,
		Output:    "table",
		Timeout:   5 * time.Minute,
		Capture: CaptureConfig{
			OutputDir: "bb_env",
		},
	}
}

// DefaultPath returns ~/.browserbox/cli.yaml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".browserbox", "cli.yaml")
}

// Load reads the configuration at path over the defaults. An empty path
// uses DefaultPath. A missing file is not an error.
func Load(path string) (*CLIConfig, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	var opts []confloader.Option
	opts = append(opts, confloader.WithEnvPrefix(EnvPrefix))
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			opts = append(opts, confloader.WithConfigFile(path))
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return errors.New("no config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
