package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Transfer constants shared by both ends of the chunked transport.
const (
	// ChunkSize is the fixed transfer block size.
	ChunkSize = 1 << 20

	// UploadIDPrefix is the prefix for upload IDs.
	UploadIDPrefix = "upl_"
)

// UploadState is the lifecycle state of an upload.
type UploadState string

const (
	UploadPending  UploadState = "pending"
	UploadComplete UploadState = "complete"
)

// Upload is the server-side record of a chunked archive transfer.
type Upload struct {
	// ID is upl_{ulid_lowercase}.
	ID string `json:"id"`

	// Name is the client-supplied archive file name (informational).
	Name string `json:"name"`

	// Size is the declared total size in bytes.
	Size int64 `json:"size"`

	// Offset is the number of bytes durably committed.
	Offset int64 `json:"offset"`

	// SHA256 is the hex digest, set on completion.
	SHA256 string `json:"sha256,omitempty"`

	State UploadState `json:"state"`

	// Encrypted reports whether the stored data is sealed at rest.
	Encrypted bool `json:"encrypted"`

	// CreatedAt and UpdatedAt are Unix milliseconds.
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NewUpload creates a pending upload with a generated ID.
func NewUpload(name string, size int64) (*Upload, error) {
	if size < 0 {
		return nil, ErrInvalidArgument.WithDetails("size must not be negative")
	}
	id, err := GenerateUploadID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	return &Upload{
		ID:        id,
		Name:      name,
		Size:      size,
		State:     UploadPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GenerateUploadID generates upl_{ulid_lowercase}.
func GenerateUploadID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return UploadIDPrefix + strings.ToLower(id.String()), nil
}

// IsValidUploadID reports whether id has the upload ID format.
func IsValidUploadID(id string) bool {
	body, ok := strings.CutPrefix(id, UploadIDPrefix)
	if !ok || len(body) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(body))
	return err == nil
}

// Remaining returns the number of bytes still expected.
func (u *Upload) Remaining() int64 {
	return u.Size - u.Offset
}

// IsComplete reports whether the upload has been finalized.
func (u *Upload) IsComplete() bool {
	return u.State == UploadComplete
}

// Touch refreshes UpdatedAt.
func (u *Upload) Touch() {
	u.UpdatedAt = time.Now().UnixMilli()
}

// UpdatedAtTime returns UpdatedAt as a time.Time.
func (u *Upload) UpdatedAtTime() time.Time {
	return time.UnixMilli(u.UpdatedAt)
}

// Clone returns a copy of the record.
func (u *Upload) Clone() *Upload {
	c := *u
	return &c
}
