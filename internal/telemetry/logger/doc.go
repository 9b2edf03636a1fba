// Package logger provides structured logging for BrowserBox.
//
// It wraps log/slog with JSON or text output, a process-wide level that can
// be changed at runtime, request-scoped loggers carried in a context, and
// redaction: API keys (bbk_...) are partially masked wherever they appear
// and values under keys such as "passphrase" or "api_key" are hidden.
package logger
