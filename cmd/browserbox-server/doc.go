// Package main provides the entry point for browserbox-server.
//
// The server hosts reusable browser environments:
//
//   - HTTP API for task submission and chunked archive uploads
//   - Browser pool with bounded admission and idle eviction
//   - Archive store with optional at-rest encryption
//   - Prometheus metrics on /metrics
//
// Usage:
//
//	browserbox-server [flags]
//	browserbox-server -config /etc/browserbox/server.yaml
//
// log.level and pool.max_idle_age are reloaded when the config file changes.
package main
