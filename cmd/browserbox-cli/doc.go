// Package main provides the entry point for browserbox-cli.
//
// The CLI captures a logged-in browser profile on a desktop, packs it into
// a portable archive, uploads it, and drives tasks against it on a server.
//
// Usage:
//
//	browserbox-cli capture --start-url https://example.com
//	browserbox-cli upload bb_env.tar.gz
//	browserbox-cli task --env <locator> --prompt "..."
//
// Run 'browserbox-cli help' for the full command list.
package main
