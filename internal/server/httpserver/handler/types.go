package handler

import (
	"time"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// DoTaskRequest is the request body for POST /dotask.
type DoTaskRequest struct {
	Env      string `json:"env"`
	APIKey   string `json:"api_key,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// DoTaskResponse is the response body for POST /dotask.
type DoTaskResponse struct {
	Result     string `json:"result"`
	ImageURL   string `json:"image_url,omitempty"`
	InstanceID string `json:"instance_id"`
}

// CreateUploadRequest is the request body for POST /uploads.
type CreateUploadRequest struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// CompleteUploadRequest is the request body for POST /uploads/{id}/complete.
type CompleteUploadRequest struct {
	SHA256 string `json:"sha256"`
}

// UploadResponse represents an upload in API responses.
type UploadResponse struct {
	UploadID  string    `json:"upload_id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Offset    int64     `json:"offset"`
	ChunkSize int64     `json:"chunk_size"`
	State     string    `json:"state"`
	SHA256    string    `json:"sha256,omitempty"`
	Locator   string    `json:"locator,omitempty"`
	Encrypted bool      `json:"encrypted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListUploadsResponse is the response body for GET /uploads.
type ListUploadsResponse struct {
	Items []UploadResponse `json:"items"`
	Total int              `json:"total"`
}

// HealthResponse is the response body for the health endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func toUploadResponse(up *domain.Upload, locator string) UploadResponse {
	return UploadResponse{
		UploadID:  up.ID,
		Name:      up.Name,
		Size:      up.Size,
		Offset:    up.Offset,
		ChunkSize: domain.ChunkSize,
		State:     string(up.State),
		SHA256:    up.SHA256,
		Locator:   locator,
		Encrypted: up.Encrypted,
		CreatedAt: time.UnixMilli(up.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(up.UpdatedAt).UTC(),
	}
}
