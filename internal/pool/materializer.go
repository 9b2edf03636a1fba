package pool

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/Hommy-master/browserbox/internal/browser"
	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/storage/archive"
	"github.com/Hommy-master/browserbox/internal/storage/snapshot"
)

// Downloader fetches the archive named by a locator.
type Downloader interface {
	Download(ctx context.Context, locator, destPath string) error
}

// Launcher starts a browser instance from a restored snapshot.
type Launcher interface {
	Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Instance, error)
}

// EnvironmentMaterializer downloads, unpacks and launches an environment
// under its own working directory.
type EnvironmentMaterializer struct {
	downloader Downloader
	archiver   *archive.Archiver
	launcher   Launcher
	workDir    string
	logger     *slog.Logger
}

// NewEnvironmentMaterializer creates a materializer rooted at workDir.
func NewEnvironmentMaterializer(d Downloader, a *archive.Archiver, l Launcher, workDir string, logger *slog.Logger) *EnvironmentMaterializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnvironmentMaterializer{
		downloader: d,
		archiver:   a,
		launcher:   l,
		workDir:    workDir,
		logger:     logger.With("component", "materializer"),
	}
}

// Materialize implements Materializer. Every failure removes the
// instance directory.
func (m *EnvironmentMaterializer) Materialize(ctx context.Context, locator, instanceID string) (h Handle, err error) {
	dir := filepath.Join(m.workDir, instanceID+"-"+strings.ToLower(ulid.Make().String()))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, domain.ErrEnvironmentUnavailable.WithDetails("create work directory").WithCause(err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	archivePath := filepath.Join(dir, archive.DefaultArchiveName)
	if err := m.downloader.Download(ctx, locator, archivePath); err != nil {
		return nil, err
	}

	snapDir := filepath.Join(dir, "snapshot")
	if _, err := m.archiver.Unpack(ctx, archivePath, snapDir); err != nil {
		return nil, err
	}
	os.Remove(archivePath)

	snap, err := snapshot.Load(snapDir)
	if err != nil {
		return nil, err
	}

	inst, err := m.launcher.Launch(ctx, browser.LaunchOptions{
		UserDataDir: snap.UserStateDir(),
		WorkDir:     dir,
		Descriptor:  snap.Descriptor,
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("environment materialized",
		"instance_id", instanceID,
		"locator", locator,
		"dir", dir,
		"user_agent", snap.Descriptor.UserAgent)
	return inst, nil
}
