package service

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/transport"
)

// Downloader fetches the archive behind a locator.
type Downloader interface {
	Download(ctx context.Context, locator, destPath string) error
}

// ArchiveDownloader serves locators that point at this server's own archive
// route straight from the archive store and hands every other locator to
// next.
type ArchiveDownloader struct {
	uploads *UploadService
	next    Downloader
	hosts   map[string]struct{}
}

// NewArchiveDownloader creates an ArchiveDownloader. baseURLs lists the
// URLs under which this server is reachable.
func NewArchiveDownloader(uploads *UploadService, next Downloader, baseURLs ...string) *ArchiveDownloader {
	d := &ArchiveDownloader{
		uploads: uploads,
		next:    next,
		hosts:   make(map[string]struct{}),
	}
	for _, raw := range baseURLs {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			d.hosts[strings.ToLower(u.Host)] = struct{}{}
		}
	}
	return d
}

// Download implements pool.Downloader.
func (d *ArchiveDownloader) Download(ctx context.Context, locator, destPath string) error {
	id, ok := d.localArchiveID(locator)
	if !ok {
		return d.next.Download(ctx, locator, destPath)
	}

	obj, err := d.uploads.OpenArchive(ctx, id)
	if err != nil {
		return err
	}
	defer obj.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	_, err = io.CopyBuffer(out, &ctxReader{ctx: ctx, r: obj}, make([]byte, domain.ChunkSize))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

func (d *ArchiveDownloader) localArchiveID(locator string) (string, bool) {
	u, err := url.Parse(locator)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	if _, ok := d.hosts[strings.ToLower(u.Host)]; !ok {
		return "", false
	}
	id, ok := strings.CutPrefix(u.Path, transport.ArchivesPath+"/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
