package command

import (
	"github.com/urfave/cli/v2"

	"github.com/Hommy-master/browserbox/pkg/token"
)

// GeneratedKey is one generated API key. Hash is the value to list in the
// server's security.api_keys.
type GeneratedKey struct {
	Key    string `json:"key"`
	Hash   string `json:"hash"`
	Masked string `json:"masked" table:"-"`
}

// KeygenCommand returns the keygen command.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate API keys and their server-side hashes",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of keys",
				Value:   1,
			},
		},
		Action: func(c *cli.Context) error {
			n := c.Int("count")
			if n < 1 || n > 100 {
				return cli.Exit("count must be between 1 and 100", 2)
			}
			s, err := settingsFrom(c)
			if err != nil {
				return err
			}

			keys := make([]GeneratedKey, 0, n)
			for range n {
				key, err := token.Generate()
				if err != nil {
					return err
				}
				keys = append(keys, GeneratedKey{
					Key:    key,
					Hash:   token.Hash(key),
					Masked: token.Mask(key),
				})
			}
			return s.Print(keys)
		},
	}
}
