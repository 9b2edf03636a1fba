// Package metric owns the Prometheus registry of the server process.
//
// Components register their own collectors through Registerer; the HTTP
// layer records request counts and latencies through ObserveRequest, and
// Handler serves everything at /metrics.
package metric
