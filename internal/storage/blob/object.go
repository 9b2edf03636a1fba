package blob

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/pkg/crypto/adaptive"
)

// Object is a readable completed archive. It supports Seek so it can be
// served with Range requests.
type Object struct {
	io.ReadSeeker
	f *os.File

	// Name is the download file name.
	Name string

	// Size is the plaintext size in bytes.
	Size int64

	// SHA256 is the hex digest of the plaintext.
	SHA256 string

	// ModTime is the completion time.
	ModTime time.Time
}

// Close releases the underlying file.
func (o *Object) Close() error {
	return o.f.Close()
}

// Open returns the archive of a completed upload. Pending uploads are not readable.
func (s *Store) Open(ctx context.Context, id string) (*Object, error) {
	up, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if !up.IsComplete() {
		return nil, notFound(id)
	}

	f, err := os.Open(s.archivePath(up))
	if os.IsNotExist(err) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	obj := &Object{
		ReadSeeker: f,
		f:          f,
		Name:       up.ID + archiveSuffix,
		Size:       up.Size,
		SHA256:     up.SHA256,
		ModTime:    up.UpdatedAtTime(),
	}
	if !up.Encrypted {
		return obj, nil
	}

	if s.cipher == nil {
		f.Close()
		return nil, domain.ErrStorageError.WithDetails("archive is encrypted but no passphrase is configured")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, domain.ErrStorageError.WithCause(err)
	}
	r, err := adaptive.NewReader(f, fi.Size(), s.cipher, domain.ChunkSize, []byte(up.ID))
	if err != nil {
		f.Close()
		return nil, domain.ErrStorageError.WithCause(err)
	}
	obj.ReadSeeker = r
	return obj, nil
}
