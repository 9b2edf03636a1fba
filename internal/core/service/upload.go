package service

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/storage/archive"
	"github.com/Hommy-master/browserbox/internal/storage/blob"
)

// ArchiveStore persists uploaded archives.
type ArchiveStore interface {
	Create(ctx context.Context, name string, size int64) (*domain.Upload, error)
	Status(ctx context.Context, id string) (*domain.Upload, error)
	Append(ctx context.Context, id string, offset int64, r io.Reader) (*domain.Upload, error)
	Complete(ctx context.Context, id, digest string) (*domain.Upload, error)
	Open(ctx context.Context, id string) (*blob.Object, error)
	List(ctx context.Context) ([]*domain.Upload, error)
	Delete(ctx context.Context, id string) error
}

// CreateUploadRequest contains parameters for starting an upload.
type CreateUploadRequest struct {
	Name string // Optional, defaults to the standard archive name
	Size int64  // Required, declared total size
}

// AppendChunkRequest contains one chunk of an upload.
type AppendChunkRequest struct {
	UploadID string
	Offset   int64
	Body     io.Reader
}

// CompleteUploadRequest finalizes an upload.
type CompleteUploadRequest struct {
	UploadID string
	SHA256   string // Optional, verified when present
}

// UploadService is the server half of the chunked transport.
type UploadService struct {
	store ArchiveStore
}

// NewUploadService creates an UploadService.
func NewUploadService(store ArchiveStore) *UploadService {
	return &UploadService{store: store}
}

// Create starts an upload.
func (s *UploadService) Create(ctx context.Context, req *CreateUploadRequest) (*domain.Upload, error) {
	if req.Size < 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("size must not be negative")
	}
	return s.store.Create(ctx, cleanName(req.Name), req.Size)
}

// Append writes one chunk.
func (s *UploadService) Append(ctx context.Context, req *AppendChunkRequest) (*domain.Upload, error) {
	if req.UploadID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("upload_id is required")
	}
	if req.Offset < 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("offset must not be negative")
	}
	if req.Body == nil {
		return nil, domain.ErrMissingArgument.WithDetails("chunk body is required")
	}
	return s.store.Append(ctx, req.UploadID, req.Offset, req.Body)
}

// Status returns an upload record.
func (s *UploadService) Status(ctx context.Context, id string) (*domain.Upload, error) {
	if id == "" {
		return nil, domain.ErrMissingArgument.WithDetails("upload_id is required")
	}
	return s.store.Status(ctx, id)
}

// Complete finalizes an upload.
func (s *UploadService) Complete(ctx context.Context, req *CompleteUploadRequest) (*domain.Upload, error) {
	if req.UploadID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("upload_id is required")
	}
	digest := strings.TrimSpace(req.SHA256)
	if digest != "" && !isHexDigest(digest) {
		return nil, domain.ErrInvalidArgument.WithDetails("sha256 must be 64 hex characters")
	}
	return s.store.Complete(ctx, req.UploadID, digest)
}

// OpenArchive returns a completed archive for reading. The caller closes it.
func (s *UploadService) OpenArchive(ctx context.Context, id string) (*blob.Object, error) {
	if id == "" {
		return nil, domain.ErrMissingArgument.WithDetails("archive id is required")
	}
	return s.store.Open(ctx, strings.TrimSuffix(id, ".tar.gz"))
}

// List returns every known upload.
func (s *UploadService) List(ctx context.Context) ([]*domain.Upload, error) {
	return s.store.List(ctx)
}

// Delete removes an upload and its data.
func (s *UploadService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrMissingArgument.WithDetails("upload_id is required")
	}
	return s.store.Delete(ctx, id)
}

func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return archive.DefaultArchiveName
	}
	return name
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range strings.ToLower(s) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
