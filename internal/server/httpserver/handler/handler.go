package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/core/service"
	"github.com/Hommy-master/browserbox/internal/pool"
	"github.com/Hommy-master/browserbox/internal/telemetry/logger"
	"github.com/Hommy-master/browserbox/internal/transport"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// TaskRunner executes dotask requests.
type TaskRunner interface {
	DoTask(ctx context.Context, req *service.DoTaskRequest) (*service.DoTaskResponse, error)
}

// PoolStats reports pool occupancy.
type PoolStats interface {
	Stats() pool.Stats
}

// Config holds the handler dependencies.
type Config struct {
	Tasks   TaskRunner
	Uploads *service.UploadService
	Pool    PoolStats

	// Ready reports whether the server accepts work. Nil means always ready.
	Ready func(context.Context) error

	// PublicURL prefixes archive locators. Empty derives it from the request.
	PublicURL string

	Logger *slog.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	tasks     TaskRunner
	uploads   *service.UploadService
	pool      PoolStats
	ready     func(context.Context) error
	publicURL string
	logger    *slog.Logger
	mux       *http.ServeMux
}

// New creates a Handler.
func New(cfg Config) *Handler {
	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}
	h := &Handler{
		tasks:     cfg.Tasks,
		uploads:   cfg.Uploads,
		pool:      cfg.Pool,
		ready:     cfg.Ready,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		logger:    l,
		mux:       http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	h.mux.HandleFunc("GET "+transport.APIPrefix+"/health", h.handleHealth)

	h.mux.HandleFunc("POST "+transport.APIPrefix+"/dotask", h.handleDoTask)
	h.mux.HandleFunc("GET "+transport.APIPrefix+"/pool", h.handlePoolStats)

	h.mux.HandleFunc("POST "+transport.UploadsPath, h.handleCreateUpload)
	h.mux.HandleFunc("GET "+transport.UploadsPath, h.handleListUploads)
	h.mux.HandleFunc("GET "+transport.UploadsPath+"/{id}", h.handleUploadStatus)
	h.mux.HandleFunc("DELETE "+transport.UploadsPath+"/{id}", h.handleDeleteUpload)
	h.mux.HandleFunc("POST "+transport.UploadsPath+"/{id}/chunks", h.handleAppendChunk)
	h.mux.HandleFunc("POST "+transport.UploadsPath+"/{id}/complete", h.handleCompleteUpload)
	h.mux.HandleFunc("GET "+transport.ArchivesPath+"/{id}", h.handleGetArchive)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	WriteError(w, r, status, code, message, details)
}

// WriteError writes an error envelope. Middleware uses it for rejections
// that happen before a handler runs.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	response := NewErrorResponse(logger.RequestIDFromContext(r.Context()), code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// WriteDomainError writes err using its code and HTTP class.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err *domain.DomainError) {
	var details any
	if err.Details != "" {
		details = err.Details
	}
	WriteError(w, r, ErrorCodeToHTTPStatus(err.Code), err.Code, err.Message, details)
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := ErrorCodeToHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			logger.L(r.Context()).Error("request failed", "code", de.Code, "error", err)
		}
		WriteDomainError(w, r, de)
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		se := domain.ErrServiceUnavailable.WithDetails("request cancelled")
		WriteDomainError(w, r, se)
		return
	}

	// Generic internal error
	logger.L(r.Context()).Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

// decodeJSON decodes a bounded JSON body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return domain.ErrBadRequest.WithDetails("invalid JSON body").WithCause(err)
	}
	return nil
}

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes. The first
// three of the four trailing digits carry the status; argument errors are 400.
func ErrorCodeToHTTPStatus(code string) int {
	if strings.Contains(code, "-ARG-") {
		return http.StatusBadRequest
	}
	i := strings.LastIndex(code, "-")
	if i < 0 || len(code)-i-1 != 4 {
		return http.StatusInternalServerError
	}
	n, err := strconv.Atoi(code[i+1:])
	if err != nil {
		return http.StatusInternalServerError
	}
	status := n / 10
	if status < 400 || status > 599 || http.StatusText(status) == "" {
		return http.StatusInternalServerError
	}
	return status
}

// baseURL returns the URL archive locators are built on.
func (h *Handler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
