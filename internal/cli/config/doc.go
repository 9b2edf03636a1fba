// Package config provides the browserbox-cli configuration.
//
// The optional client file lives at ~/.browserbox/cli.yaml and is read
// through confloader, so BROWSERBOX_CLI_* environment variables override
// it. Command-line flags override both.
package config
