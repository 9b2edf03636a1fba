package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/Hommy-master/browserbox/internal/server/httpserver/handler"
	"github.com/Hommy-master/browserbox/internal/telemetry/metric"
	"github.com/Hommy-master/browserbox/internal/transport"
	"github.com/Hommy-master/browserbox/pkg/token"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler holds the services behind the API.
	Handler handler.Config

	// Keyring validates API keys. Nil or empty accepts every request.
	Keyring *token.Keyring

	// Metrics records request metrics and serves /metrics. Optional.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// RateLimit is the per-IP request rate in requests/second. Zero disables it.
	RateLimit float64
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger:             slog.Default(),
		CORSAllowedOrigins: []string{"*"},
		RateLimit:          50,
	}
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.Handler.Logger == nil {
		cfg.Handler.Logger = log
	}
	h := handler.New(cfg.Handler)

	// Order: Recover -> RequestID -> CORS -> RateLimit -> Auth -> Audit -> Handler
	public := Chain(h,
		Recover(log),
		RequestID(),
		CORS(cfg.CORSAllowedOrigins),
		Audit(log, cfg.Metrics),
	)
	business := Chain(h,
		Recover(log),
		RequestID(),
		CORS(cfg.CORSAllowedOrigins),
		RateLimit(cfg.RateLimit, cfg.Metrics),
		Auth(cfg.Keyring, cfg.Metrics),
		Audit(log, cfg.Metrics),
	)

	mux := http.NewServeMux()

	// Health endpoints - no authentication required
	mux.Handle("GET /{$}", public)
	mux.Handle("GET /health", public)
	mux.Handle("GET /ready", public)
	mux.Handle("GET "+transport.APIPrefix+"/health", public)
	mux.Handle("OPTIONS "+transport.APIPrefix+"/", public)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(log), RequestID()))
	}

	// Task endpoints
	mux.Handle("POST "+transport.APIPrefix+"/dotask", business)
	mux.Handle("GET "+transport.APIPrefix+"/pool", business)

	// Chunked upload endpoints
	mux.Handle("POST "+transport.UploadsPath, business)
	mux.Handle("GET "+transport.UploadsPath, business)
	mux.Handle("GET "+transport.UploadsPath+"/{id}", business)
	mux.Handle("DELETE "+transport.UploadsPath+"/{id}", business)
	mux.Handle("POST "+transport.UploadsPath+"/{id}/chunks", business)
	mux.Handle("POST "+transport.UploadsPath+"/{id}/complete", business)

	// Archive downloads
	mux.Handle("GET "+transport.ArchivesPath+"/{id}", business)

	return mux
}
