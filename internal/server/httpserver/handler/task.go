package handler

import (
	"net/http"
	"strings"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/core/service"
)

// handleDoTask handles POST /dotask.
func (h *Handler) handleDoTask(w http.ResponseWriter, r *http.Request) {
	var req DoTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Env) == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("env is required"))
		return
	}

	resp, err := h.tasks.DoTask(r.Context(), &service.DoTaskRequest{
		Env:      strings.TrimSpace(req.Env),
		Prompt:   req.Prompt,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		if domain.IsDomainError(err, domain.ErrPoolExhausted.Code) {
			w.Header().Set("Retry-After", "1")
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, DoTaskResponse{
		Result:     resp.Result,
		ImageURL:   resp.ImageURL,
		InstanceID: resp.InstanceID,
	})
}

// handlePoolStats handles GET /pool.
func (h *Handler) handlePoolStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.pool.Stats())
}
