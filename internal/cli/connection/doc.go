// Package connection provides the browserbox-cli API client.
//
// Client speaks the JSON envelope of the server API and unwraps its data
// field. Archive transfers go through transport.HTTPTransport instead.
package connection
