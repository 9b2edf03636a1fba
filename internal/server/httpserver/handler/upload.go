package handler

import (
	"net/http"
	"strconv"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/core/service"
	"github.com/Hommy-master/browserbox/internal/transport"
)

// handleCreateUpload handles POST /uploads.
func (h *Handler) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	var req CreateUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	up, err := h.uploads.Create(r.Context(), &service.CreateUploadRequest{
		Name: req.Name,
		Size: req.Size,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, toUploadResponse(up, ""))
}

// handleListUploads handles GET /uploads.
func (h *Handler) handleListUploads(w http.ResponseWriter, r *http.Request) {
	ups, err := h.uploads.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	items := make([]UploadResponse, 0, len(ups))
	for _, up := range ups {
		items = append(items, toUploadResponse(up, h.locator(r, up)))
	}
	h.writeJSON(w, r, http.StatusOK, ListUploadsResponse{Items: items, Total: len(items)})
}

// handleUploadStatus handles GET /uploads/{id}.
func (h *Handler) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	up, err := h.uploads.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toUploadResponse(up, h.locator(r, up)))
}

// handleDeleteUpload handles DELETE /uploads/{id}.
func (h *Handler) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.uploads.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"upload_id": id})
}

// handleAppendChunk handles POST /uploads/{id}/chunks?offset=N.
func (h *Handler) handleAppendChunk(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("offset")
	if raw == "" {
		h.handleServiceError(w, r, domain.ErrMissingArgument.WithDetails("offset is required"))
		return
	}
	offset, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetailsf("offset %q is not an integer", raw))
		return
	}
	if r.ContentLength > domain.ChunkSize {
		h.handleServiceError(w, r, domain.ErrChunkTooLarge.WithDetailsf("chunk exceeds %d bytes", domain.ChunkSize))
		return
	}

	up, err := h.uploads.Append(r.Context(), &service.AppendChunkRequest{
		UploadID: r.PathValue("id"),
		Offset:   offset,
		Body:     r.Body,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toUploadResponse(up, ""))
}

// handleCompleteUpload handles POST /uploads/{id}/complete.
func (h *Handler) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req CompleteUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	up, err := h.uploads.Complete(r.Context(), &service.CompleteUploadRequest{
		UploadID: r.PathValue("id"),
		SHA256:   req.SHA256,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, toUploadResponse(up, h.locator(r, up)))
}

// handleGetArchive handles GET /archives/{id}. Range requests are served
// from the seekable archive object.
func (h *Handler) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	obj, err := h.uploads.OpenArchive(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("ETag", `"`+obj.SHA256+`"`)
	w.Header().Set("X-Checksum-SHA256", obj.SHA256)
	http.ServeContent(w, r, obj.Name, obj.ModTime, obj)
}

// locator returns the download URL of a completed upload.
func (h *Handler) locator(r *http.Request, up *domain.Upload) string {
	if !up.IsComplete() {
		return ""
	}
	return h.baseURL(r) + transport.ArchivesPath + "/" + up.ID + ".tar.gz"
}
