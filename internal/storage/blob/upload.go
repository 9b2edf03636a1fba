package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/storage"
	"github.com/Hommy-master/browserbox/pkg/crypto/adaptive"
)

// Create starts a pending upload of size bytes.
func (s *Store) Create(ctx context.Context, name string, size int64) (*domain.Upload, error) {
	if size > s.cfg.MaxArchiveSize {
		return nil, domain.ErrInvalidArgument.WithDetailsf("size %d exceeds the %d byte limit", size, s.cfg.MaxArchiveSize)
	}
	up, err := domain.NewUpload(name, size)
	if err != nil {
		return nil, err
	}
	up.CreatedAt = s.cfg.Now().UnixMilli()
	up.UpdatedAt = up.CreatedAt

	f, err := os.OpenFile(s.partPath(up.ID), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	f.Close()

	if err := s.put(ctx, up); err != nil {
		os.Remove(s.partPath(up.ID))
		return nil, err
	}
	s.active.Set(up.ID, &session{up: up})
	s.metrics.active.Set(float64(s.active.Count()))

	s.logger.Info("upload created", "upload_id", up.ID, "name", name, "size", size)
	return up.Clone(), nil
}

// Status returns the current record of an upload.
func (s *Store) Status(ctx context.Context, id string) (*domain.Upload, error) {
	if !domain.IsValidUploadID(id) {
		return nil, notFound(id)
	}
	if sess, ok := s.active.Get(id); ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.up.Clone(), nil
	}
	data, err := s.kv.Get(ctx, uploadKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	var up domain.Upload
	if err := json.Unmarshal(data, &up); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return &up, nil
}

// Append writes one chunk at offset, which must equal the committed offset.
// The chunk is read fully and validated before anything is written, so a
// rejected chunk leaves the upload unchanged.
func (s *Store) Append(ctx context.Context, id string, offset int64, r io.Reader) (*domain.Upload, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	up := sess.up
	if up.IsComplete() {
		return nil, domain.ErrUploadCompleted.WithDetailsf("upload %q", id)
	}
	if offset != up.Offset {
		return nil, domain.ErrUploadOffsetMismatch.WithDetailsf("expected offset %d, got %d", up.Offset, offset)
	}

	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r, domain.ChunkSize+1))
	if err != nil {
		return nil, domain.ErrBadRequest.WithDetails("read chunk body").WithCause(err)
	}
	if n > domain.ChunkSize {
		return nil, domain.ErrChunkTooLarge.WithDetailsf("chunk exceeds %d bytes", domain.ChunkSize)
	}
	if up.Offset+n > up.Size {
		return nil, domain.ErrUploadOverflow.WithDetailsf("chunk of %d bytes at offset %d exceeds declared size %d", n, offset, up.Size)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := writeAt(s.partPath(id), offset, buf.Bytes()); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	next := up.Clone()
	next.Offset += n
	next.UpdatedAt = s.cfg.Now().UnixMilli()
	if err := s.put(ctx, next); err != nil {
		return nil, err
	}
	sess.up = next
	s.metrics.bytesReceived.Add(float64(n))
	return next.Clone(), nil
}

// Complete finalizes an upload. All declared bytes must be present; when
// digest is non-empty it must equal the SHA-256 of the data. Completing an
// already complete upload with a matching or empty digest returns its record.
func (s *Store) Complete(ctx context.Context, id, digest string) (*domain.Upload, error) {
	digest = strings.ToLower(strings.TrimSpace(digest))

	sess, err := s.session(ctx, id)
	if errors.Is(err, domain.ErrUploadCompleted) {
		up, serr := s.Status(ctx, id)
		if serr != nil {
			return nil, serr
		}
		if digest != "" && digest != up.SHA256 {
			return nil, domain.ErrChecksumMismatch.WithDetailsf("expected %s, got %s", up.SHA256, digest)
		}
		return up, nil
	}
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	up := sess.up
	if up.IsComplete() {
		if digest != "" && digest != up.SHA256 {
			return nil, domain.ErrChecksumMismatch.WithDetailsf("expected %s, got %s", up.SHA256, digest)
		}
		return up.Clone(), nil
	}
	if up.Offset != up.Size {
		return nil, domain.ErrUploadIncomplete.WithDetailsf("received %d of %d bytes", up.Offset, up.Size)
	}

	sum, err := fileDigest(s.partPath(id))
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	if digest != "" && digest != sum {
		return nil, domain.ErrChecksumMismatch.WithDetailsf("expected %s, got %s", digest, sum)
	}

	done := up.Clone()
	done.SHA256 = sum
	done.State = domain.UploadComplete
	done.Encrypted = s.cipher != nil
	done.UpdatedAt = s.cfg.Now().UnixMilli()

	if err := s.finalize(done); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	if err := s.put(ctx, done); err != nil {
		os.Remove(s.archivePath(done))
		return nil, err
	}
	os.Remove(s.partPath(id))

	sess.up = done
	s.active.Delete(id)
	s.metrics.active.Set(float64(s.active.Count()))
	s.metrics.completed.Inc()

	s.logger.Info("upload completed",
		"upload_id", id,
		"size", done.Size,
		"sha256", sum,
		"encrypted", done.Encrypted)
	return done.Clone(), nil
}

// session returns the in-memory session of a pending upload.
func (s *Store) session(ctx context.Context, id string) (*session, error) {
	if sess, ok := s.active.Get(id); ok {
		return sess, nil
	}
	up, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if up.IsComplete() {
		return nil, domain.ErrUploadCompleted.WithDetailsf("upload %q", id)
	}
	sess, _ := s.active.GetOrSet(id, &session{up: up})
	return sess, nil
}

// finalize moves the part file into its archive location, sealing it
// first when encryption is enabled.
func (s *Store) finalize(up *domain.Upload) error {
	part := s.partPath(up.ID)
	dst := s.archivePath(up)
	if s.cipher == nil {
		return os.Rename(part, dst)
	}

	src, err := os.Open(part)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	w := adaptive.NewWriter(out, s.cipher, domain.ChunkSize, []byte(up.ID))
	_, err = io.CopyBuffer(w, src, make([]byte, domain.ChunkSize))
	if err == nil {
		err = w.Close()
	}
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		os.Remove(tmp)
	}
	return err
}

func writeAt(path string, offset int64, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	// Bytes past the committed offset belong to a chunk that was never acknowledged.
	if err := f.Truncate(offset); err != nil {
		f.Close()
		return err
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, domain.ChunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
