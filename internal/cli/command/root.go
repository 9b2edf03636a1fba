package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Hommy-master/browserbox/internal/cli/config"
	"github.com/Hommy-master/browserbox/internal/cli/connection"
	"github.com/Hommy-master/browserbox/internal/cli/output"
	"github.com/Hommy-master/browserbox/internal/infra/buildinfo"
	"github.com/Hommy-master/browserbox/internal/infra/tlsroots"
	"github.com/Hommy-master/browserbox/internal/telemetry/logger"
)

const metaSettings = "settings"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "browserbox-cli",
		Usage:   "Capture, ship and run reusable browser environments",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			CaptureCommand(),
			PackCommand(),
			UnpackCommand(),
			InspectCommand(),
			UploadCommand(),
			DownloadCommand(),
			TaskCommand(),
			HealthCommand(),
			PoolCommand(),
			KeygenCommand(),
			ConfigCommand(),
		},
		Before:               before,
		EnableBashCompletion: true,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server-url",
			Aliases: []string{"s"},
			Usage:   "BrowserBox server URL",
			EnvVars: []string{"BROWSERBOX_SERVER"},
			Value:   config.DefaultServerURL,
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"k"},
			Usage:   "API key sent as X-API-Key",
			EnvVars: []string{"BROWSERBOX_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Client config file",
			Value:   config.DefaultPath(),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log debug output to stderr",
		},
	}
}

// Settings is the resolved client configuration of one invocation.
// Flags and their environment variables win over the config file.
type Settings struct {
	ServerURL string
	APIKey    string
	Output    output.Format
	Verbose   bool

	Config *config.CLIConfig
	Logger *slog.Logger

	stdout io.Writer
	stderr io.Writer
}

func before(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s := &Settings{
		ServerURL: cfg.ServerURL,
		APIKey:    cfg.APIKey,
		Verbose:   c.Bool("verbose"),
		Config:    cfg,
		stdout:    writerOr(c.App.Writer, os.Stdout),
		stderr:    writerOr(c.App.ErrWriter, os.Stderr),
	}
	if c.IsSet("server-url") || cfg.ServerURL == "" {
		s.ServerURL = c.String("server-url")
	}
	if c.IsSet("api-key") {
		s.APIKey = c.String("api-key")
	}

	format := cfg.Output
	if c.IsSet("output") || format == "" {
		format = c.String("output")
	}
	if s.Output, err = output.ParseFormat(format); err != nil {
		return err
	}

	level := "warn"
	if s.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "text", Output: s.stderr})
	if err != nil {
		return err
	}
	s.Logger = log.Slog()

	c.App.Metadata[metaSettings] = s
	return nil
}

// settingsFrom returns the settings resolved by before.
func settingsFrom(c *cli.Context) (*Settings, error) {
	if s, ok := c.App.Metadata[metaSettings].(*Settings); ok {
		return s, nil
	}
	return nil, fmt.Errorf("settings not initialized")
}

// Client creates an API client for the configured server.
func (s *Settings) Client() (*connection.Client, error) {
	tlsCfg, err := tlsroots.ClientConfig(s.Config.CAFile)
	if err != nil {
		return nil, err
	}
	return connection.NewClient(s.ServerURL, s.APIKey, connection.WithTLSConfig(tlsCfg)), nil
}

// Print writes a result in the selected format.
func (s *Settings) Print(data any) error {
	return output.NewFormatter(s.Output).Format(s.stdout, data)
}

// Progress returns a progress bar on stderr, or nil for machine formats.
func (s *Settings) Progress(title string) *output.ProgressBar {
	if s.Output != output.FormatTable {
		return nil
	}
	return output.NewProgressBar(s.stderr, title)
}

// Notef prints a human hint on stderr.
func (s *Settings) Notef(format string, args ...any) {
	fmt.Fprintf(s.stderr, format+"\n", args...)
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}
