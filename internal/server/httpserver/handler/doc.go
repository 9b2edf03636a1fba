// Package handler provides the HTTP request handlers of browserbox-server.
//
// Handlers parse the request, call a core service and write the standard
// response envelope. Domain errors map to HTTP statuses through the digits
// of their code, so BB-POOL-4290 becomes 429 and BB-POOL-5020 becomes 502.
package handler
