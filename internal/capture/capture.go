package capture

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Hommy-master/browserbox/internal/browser"
	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/storage/archive"
	"github.com/Hommy-master/browserbox/internal/storage/snapshot"
)

// liveStateDirName is the engine's user data dir inside the work dir.
const liveStateDirName = "live-state"

// Engine starts interactive capture sessions.
type Engine interface {
	StartCapture(ctx context.Context, opts browser.CaptureOptions) (browser.Session, error)
}

// Options configures one capture.
type Options struct {
	// OutputDir receives the snapshot. Required.
	OutputDir string

	// WorkDir holds the live engine state. Empty uses a temporary
	// directory that is removed afterwards.
	WorkDir string

	// ArchivePath is the packed archive. Empty places bb_env.tar.gz next
	// to OutputDir.
	ArchivePath string

	// StartURL is opened when the session starts.
	StartURL string

	// Viewport overrides the recorded viewport. Zero uses the default.
	Viewport domain.Viewport

	// Stop ends the session as if the user closed the browser.
	Stop <-chan struct{}
}

// Result describes a finished capture.
type Result struct {
	SnapshotDir string
	Archive     *archive.Info
	Descriptor  domain.FingerprintDescriptor
	Stats       snapshot.CopyStats
}

// Capturer turns an interactive browser session into a packed snapshot.
type Capturer struct {
	engine    Engine
	snapshots *snapshot.Store
	archiver  *archive.Archiver
	logger    *slog.Logger
}

// New creates a Capturer.
func New(engine Engine, snapshots *snapshot.Store, archiver *archive.Archiver, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{
		engine:    engine,
		snapshots: snapshots,
		archiver:  archiver,
		logger:    logger.With("component", "capture"),
	}
}

// Capture launches a session, records its fingerprint, waits for the
// session to end, then snapshots and packs the live state. The session is
// closed on every path. Cancelling ctx aborts without a snapshot.
func (c *Capturer) Capture(ctx context.Context, opts Options) (*Result, error) {
	if opts.OutputDir == "" {
		return nil, domain.ErrMissingArgument.WithDetails("output dir")
	}
	outputDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithCause(err)
	}
	archivePath := opts.ArchivePath
	if archivePath == "" {
		archivePath = filepath.Join(filepath.Dir(outputDir), archive.DefaultArchiveName)
	}

	workDir := opts.WorkDir
	if workDir == "" {
		if workDir, err = os.MkdirTemp("", "browserbox-capture-*"); err != nil {
			return nil, domain.ErrSnapshotWrite.WithCause(err)
		}
		defer os.RemoveAll(workDir)
	}
	liveDir := filepath.Join(workDir, liveStateDirName)

	session, err := c.engine.StartCapture(ctx, browser.CaptureOptions{
		UserDataDir: liveDir,
		StartURL:    opts.StartURL,
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	desc, err := c.fingerprint(ctx, session, opts.Viewport)
	if err != nil {
		return nil, err
	}
	c.logger.Info("capture session running; close the browser to finish",
		"user_agent", desc.UserAgent,
		"user_data_dir", liveDir)

	select {
	case <-session.Done():
		c.logger.Info("capture session ended")
	case <-opts.Stop:
		c.logger.Info("capture session stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	session.Close()

	stats, err := c.snapshots.Write(ctx, liveDir, desc, outputDir)
	if err != nil {
		return nil, err
	}

	info, err := c.archiver.Pack(ctx, outputDir, archivePath)
	if err != nil {
		return nil, err
	}

	c.logger.Info("capture complete",
		"snapshot", outputDir,
		"archive", info.Path,
		"size", info.Size,
		"sha256", info.SHA256)
	return &Result{
		SnapshotDir: outputDir,
		Archive:     info,
		Descriptor:  desc,
		Stats:       stats,
	}, nil
}

func (c *Capturer) fingerprint(ctx context.Context, session browser.Session, viewport domain.Viewport) (domain.FingerprintDescriptor, error) {
	probe, err := session.Probe(ctx)
	if err != nil {
		return domain.FingerprintDescriptor{}, err
	}
	desc := domain.NewFingerprintDescriptor(probe.UserAgent, viewport, domain.DefaultLaunchArgs)
	desc.Language = probe.Language
	desc.Timezone = probe.Timezone
	desc.Platform = probe.Platform
	if err := desc.Validate(); err != nil {
		return desc, err
	}
	return desc, nil
}
