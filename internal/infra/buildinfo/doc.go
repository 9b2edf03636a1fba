// Package buildinfo reports the BrowserBox version for the health
// endpoint, the CLI version flag and the HTTP User-Agent.
package buildinfo
