package transport

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// FileTransport transfers archives through a shared filesystem. Locators
// are file:// URLs.
type FileTransport struct {
	dir      string
	progress ProgressFunc
}

// NewFileTransport creates a FileTransport that uploads into dir.
func NewFileTransport(dir string, progress ProgressFunc) *FileTransport {
	return &FileTransport{dir: dir, progress: progress}
}

// Upload copies the archive into the transport directory under a fresh
// upload ID.
func (t *FileTransport) Upload(ctx context.Context, archivePath string) (string, error) {
	if t.dir == "" {
		return "", domain.ErrLocatorUnsupported.WithDetails("file transport has no upload directory")
	}
	id, err := domain.GenerateUploadID()
	if err != nil {
		return "", err
	}

	dest, err := filepath.Abs(filepath.Join(t.dir, id+".tar.gz"))
	if err != nil {
		return "", transportError("upload", archivePath, err)
	}
	if err := t.copy(ctx, archivePath, dest); err != nil {
		return "", transportError("upload", archivePath, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}).String(), nil
}

// Download copies the archive at locator to destPath.
func (t *FileTransport) Download(ctx context.Context, locator, destPath string) error {
	src, err := filePath(locator)
	if err != nil {
		return err
	}
	if err := t.copy(ctx, src, destPath); err != nil {
		return transportError("download", locator, err)
	}
	return nil
}

func (t *FileTransport) copy(ctx context.Context, src, destPath string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return err
	}

	out, _, err := partialFile(destPath)
	if err != nil {
		return err
	}
	if err := out.Truncate(0); err != nil {
		out.Close()
		return err
	}
	if _, err := out.Seek(0, 0); err != nil {
		out.Close()
		return err
	}

	if _, err := copyChunks(ctx, out, in, 0, st.Size(), t.progress); err != nil {
		out.Close()
		os.Remove(out.Name())
		return err
	}
	return finishPartial(out, destPath)
}

func filePath(locator string) (string, error) {
	if !strings.Contains(locator, "://") {
		return locator, nil
	}
	u, err := url.Parse(locator)
	if err != nil {
		return "", domain.ErrLocatorUnsupported.WithCause(err)
	}
	if u.Scheme != "file" {
		return "", domain.ErrLocatorUnsupported.WithDetailsf("scheme %q", u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", domain.ErrLocatorUnsupported.WithDetailsf("remote file host %q", u.Host)
	}
	return filepath.FromSlash(u.Path), nil
}
