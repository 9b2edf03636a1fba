// Package httpserver provides the HTTP/HTTPS server of browserbox-server.
//
// Endpoints live under /openapi/browserbox/v1:
//
//   - POST /dotask: run a prompt on a pooled environment
//   - /uploads: chunked archive uploads with resume
//   - GET /archives/{id}: archive download with Range support
//   - GET /pool, /health: pool occupancy and liveness
//
// /health, /ready and /metrics are also served at the root. Business
// routes pass through Recover, RequestID, CORS, RateLimit, Auth and Audit.
package httpserver
