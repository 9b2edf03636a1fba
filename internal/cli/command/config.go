package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Hommy-master/browserbox/internal/cli/config"
	"github.com/Hommy-master/browserbox/pkg/token"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the client config file",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: configShow,
			},
			{
				Name:  "init",
				Usage: "Write a config file with the current settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: configInit,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}
	cfg := *s.Config
	cfg.ServerURL = s.ServerURL
	cfg.Output = string(s.Output)
	cfg.APIKey = ""
	if s.APIKey != "" {
		cfg.APIKey = token.Mask(s.APIKey)
	}
	return s.Print(cfg)
}

func configInit(c *cli.Context) error {
	s, err := settingsFrom(c)
	if err != nil {
		return err
	}
	path := c.String("config")
	if path == "" {
		return cli.Exit("--config path required", 2)
	}
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s exists; use --force to overwrite", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := *s.Config
	cfg.ServerURL = s.ServerURL
	cfg.APIKey = s.APIKey
	cfg.Output = string(s.Output)
	if err := config.Save(&cfg, path); err != nil {
		return err
	}
	s.Notef("Wrote %s", path)
	return nil
}
