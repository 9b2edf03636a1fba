package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// Transport moves archive files between hosts.
type Transport interface {
	// Upload transfers the archive and returns a locator that Download on
	// another host can resolve.
	Upload(ctx context.Context, archivePath string) (string, error)

	// Download fetches the archive behind locator into destPath.
	Download(ctx context.Context, locator, destPath string) error
}

// ProgressFunc reports transferred bytes. total is -1 when unknown.
type ProgressFunc func(done, total int64)

// Router dispatches downloads by locator scheme and uploads to a single
// configured backend.
type Router struct {
	mu       sync.RWMutex
	backends map[string]Transport
	uploader Transport
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{backends: make(map[string]Transport)}
}

// Register binds t to the given locator schemes.
func (r *Router) Register(t Transport, schemes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schemes {
		r.backends[strings.ToLower(s)] = t
	}
}

// SetUploader selects the backend used by Upload.
func (r *Router) SetUploader(t Transport) {
	r.mu.Lock()
	r.uploader = t
	r.mu.Unlock()
}

// Schemes returns the registered schemes.
func (r *Router) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.backends))
	for s := range r.backends {
		out = append(out, s)
	}
	return out
}

// Upload implements Transport.
func (r *Router) Upload(ctx context.Context, archivePath string) (string, error) {
	r.mu.RLock()
	up := r.uploader
	r.mu.RUnlock()
	if up == nil {
		return "", domain.ErrLocatorUnsupported.WithDetails("no upload backend configured")
	}
	return up.Upload(ctx, archivePath)
}

// Download implements Transport.
func (r *Router) Download(ctx context.Context, locator, destPath string) error {
	scheme := Scheme(locator)

	r.mu.RLock()
	t, ok := r.backends[scheme]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrLocatorUnsupported.WithDetailsf("scheme %q", scheme)
	}
	return t.Download(ctx, locator, destPath)
}

// Scheme returns the lowercased URL scheme of locator, or "file" for a bare
// path.
func Scheme(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// A one-letter scheme is a Windows drive letter.
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// transportError classifies err as a retryable transport failure, keeping
// an existing classification intact.
func transportError(op, target string, err error) error {
	if domain.IsDomainError(err, "") {
		return err
	}
	return domain.ErrTransport.WithDetailsf("%s %s", op, target).WithCause(err)
}

// copyChunks copies src to dst in ChunkSize blocks, checking ctx between
// blocks. start is the number of bytes already present at dst.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, start, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, domain.ChunkSize)
	done := start
	for {
		if err := ctx.Err(); err != nil {
			return done - start, err
		}
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return done - start, werr
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			return done - start, nil
		}
		if rerr != nil {
			return done - start, rerr
		}
	}
}

// partialFile opens destPath's ".part" sibling for appending and returns it
// with its current size.
func partialFile(destPath string) (*os.File, int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		return nil, 0, err
	}
	f, err := os.OpenFile(destPath+".part", os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		return nil, 0, err
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, size, nil
}

// finishPartial syncs and renames the ".part" file into place.
func finishPartial(f *os.File, destPath string) error {
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(f.Name(), destPath); err != nil {
		return fmt.Errorf("rename %s: %w", f.Name(), err)
	}
	return nil
}
