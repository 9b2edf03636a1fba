// Package tlsroots builds TLS configurations for BrowserBox.
//
// ClientConfig trusts the system roots plus a private CA file, for
// archive downloads and CLI calls against a server with its own CA.
// Reloader serves the server certificate and picks up renewed files
// without a restart.
package tlsroots
