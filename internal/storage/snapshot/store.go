package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// Snapshot directory layout.
const (
	UserStateDirName   = "user-state"
	DescriptorFileName = "descriptor"
)

// Retry defaults for the live-state copy.
const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 500 * time.Millisecond
)

// Config configures a Store.
type Config struct {
	// MaxAttempts bounds whole-tree copy attempts.
	MaxAttempts int

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration

	// IgnorePatterns are extra file name globs treated as transient.
	IgnorePatterns []string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		RetryDelay:  DefaultRetryDelay,
	}
}

// Snapshot is a validated snapshot directory.
type Snapshot struct {
	Dir        string
	Descriptor domain.FingerprintDescriptor
}

// UserStateDir returns the engine-owned subtree of the snapshot.
func (s *Snapshot) UserStateDir() string {
	return filepath.Join(s.Dir, UserStateDirName)
}

// Store reads and writes snapshot directories.
type Store struct {
	cfg    Config
	policy *IgnorePolicy
	logger *slog.Logger

	// open is swapped in tests to inject copy failures.
	open func(name string) (*os.File, error)
}

// NewStore creates a snapshot store.
func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := NewIgnorePolicy(cfg.IgnorePatterns...)
	if err != nil {
		return nil, err
	}

	return &Store{
		cfg:    cfg,
		policy: policy,
		logger: logger.With("component", "snapshot"),
		open:   os.Open,
	}, nil
}

// Write persists a live state directory and its descriptor as a snapshot at
// targetDir. An existing user-state subtree at the target is replaced, not
// merged. On error the caller must discard targetDir.
func (s *Store) Write(ctx context.Context, liveStateDir string, desc domain.FingerprintDescriptor, targetDir string) (CopyStats, error) {
	info, err := os.Stat(liveStateDir)
	if err != nil {
		return CopyStats{}, domain.ErrSnapshotWrite.WithDetails("live state directory not found").WithCause(err)
	}
	if !info.IsDir() {
		return CopyStats{}, domain.ErrSnapshotWrite.WithDetails("live state path is not a directory")
	}

	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return CopyStats{}, domain.ErrSnapshotWrite.WithCause(err)
	}

	userState := filepath.Join(targetDir, UserStateDirName)
	if err := os.RemoveAll(userState); err != nil {
		return CopyStats{}, domain.ErrSnapshotWrite.WithDetails("remove previous user-state").WithCause(err)
	}

	stats, err := s.copyWithRetry(ctx, liveStateDir, userState)
	if err != nil {
		return stats, err
	}

	if err := writeDescriptor(targetDir, desc); err != nil {
		return stats, domain.ErrSnapshotWrite.WithDetails("write descriptor").WithCause(err)
	}

	s.logger.Info("snapshot written",
		"target", targetDir,
		"files", stats.Copied,
		"vanished", stats.Vanished,
		"ignored", stats.Ignored,
		"attempts", stats.Attempts,
	)
	return stats, nil
}

// Load opens and validates the snapshot at dir.
func (s *Store) Load(dir string) (*Snapshot, error) {
	return Load(dir)
}

// Load opens and validates the snapshot at dir. A snapshot is valid iff its
// descriptor exists and parses; the user-state subtree may be partial.
func Load(dir string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptorFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSnapshotInvalid.WithDetails("descriptor not found")
		}
		return nil, domain.ErrSnapshotInvalid.WithCause(err)
	}

	desc, err := domain.ParseDescriptor(data)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Dir: dir, Descriptor: desc}, nil
}

func writeDescriptor(dir string, desc domain.FingerprintDescriptor) error {
	data, err := desc.Marshal()
	if err != nil {
		return err
	}

	final := filepath.Join(dir, DescriptorFileName)
	tmp := final + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("snapshot: create descriptor: %w", err)
	}
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}
