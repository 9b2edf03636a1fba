package command

import (
	"github.com/urfave/cli/v2"

	"github.com/Hommy-master/browserbox/internal/transport"
)

// TaskRequest is the dotask request body.
type TaskRequest struct {
	Env      string `json:"env"`
	Prompt   string `json:"prompt,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// TaskResult is the dotask response.
type TaskResult struct {
	Result     string `json:"result"`
	ImageURL   string `json:"image_url,omitempty"`
	InstanceID string `json:"instance_id"`
}

// Health is the health response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// PoolStats is the pool occupancy response.
type PoolStats struct {
	CapacityInUse  int `json:"capacity_in_use"`
	MaxConcurrent  int `json:"max_concurrent"`
	Instances      int `json:"instances"`
	InstancesInUse int `json:"instances_in_use"`
}

// TaskCommand returns the task command.
func TaskCommand() *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Run a task against an environment on the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment `LOCATOR`",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "prompt",
				Aliases: []string{"p"},
				Usage:   "Task prompt",
			},
			&cli.StringFlag{
				Name:  "image-url",
				Usage: "Image URL passed through to the task",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := settingsFrom(c)
			if err != nil {
				return err
			}
			client, err := s.Client()
			if err != nil {
				return err
			}

			req := TaskRequest{
				Env:      c.String("env"),
				Prompt:   c.String("prompt"),
				ImageURL: c.String("image-url"),
			}
			var result TaskResult
			if err := client.Post(c.Context, transport.APIPrefix+"/dotask", req, &result); err != nil {
				return err
			}
			return s.Print(result)
		},
	}
}

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "ready",
				Usage: "Check readiness instead of liveness",
			},
		},
		Action: func(c *cli.Context) error {
			s, err := settingsFrom(c)
			if err != nil {
				return err
			}
			client, err := s.Client()
			if err != nil {
				return err
			}

			path := transport.APIPrefix + "/health"
			if c.Bool("ready") {
				path = "/ready"
			}
			var h Health
			if err := client.Get(c.Context, path, &h); err != nil {
				return err
			}
			return s.Print(h)
		},
	}
}

// PoolCommand returns the pool command.
func PoolCommand() *cli.Command {
	return &cli.Command{
		Name:  "pool",
		Usage: "Show browser pool occupancy",
		Action: func(c *cli.Context) error {
			s, err := settingsFrom(c)
			if err != nil {
				return err
			}
			client, err := s.Client()
			if err != nil {
				return err
			}

			var stats PoolStats
			if err := client.Get(c.Context, transport.APIPrefix+"/pool", &stats); err != nil {
				return err
			}
			return s.Print(stats)
		},
	}
}
