package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// CopyStats summarizes a live state copy.
type CopyStats struct {
	Copied   int   `json:"copied"`
	Bytes    int64 `json:"bytes"`
	Vanished int   `json:"vanished"`
	Ignored  int   `json:"ignored"`
	Attempts int   `json:"attempts"`
}

// outcome classifies a single entry copy.
type outcome int

const (
	outcomeCopied outcome = iota
	// outcomeTransient covers vanished and ignorable files. Skipped silently.
	outcomeTransient
	// outcomeRetryable fails the current attempt; the whole tree is copied again.
	outcomeRetryable
)

const copyBufferSize = 256 << 10

func (s *Store) copyWithRetry(ctx context.Context, src, dst string) (CopyStats, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		stats, err := s.copyTree(ctx, src, dst)
		stats.Attempts = attempt
		if err == nil {
			return stats, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			os.RemoveAll(dst)
			return stats, domain.ErrSnapshotWrite.WithDetails("copy cancelled").WithCause(ctxErr)
		}

		lastErr = err
		s.logger.Warn("snapshot copy attempt failed",
			"attempt", attempt,
			"max_attempts", s.cfg.MaxAttempts,
			"error", err,
		)
		if err := os.RemoveAll(dst); err != nil {
			return stats, domain.ErrSnapshotWrite.WithDetails("reset partial copy").WithCause(err)
		}

		if attempt < s.cfg.MaxAttempts {
			if err := sleepCtx(ctx, s.cfg.RetryDelay); err != nil {
				return stats, domain.ErrSnapshotWrite.WithDetails("copy cancelled").WithCause(err)
			}
		}
	}

	return CopyStats{Attempts: s.cfg.MaxAttempts}, domain.ErrCopyRetryExhausted.
		WithDetailsf("%d attempts", s.cfg.MaxAttempts).
		WithCause(lastErr)
}

// copyTree performs one whole-tree copy attempt. The walk is lexical, so
// repeated attempts visit entries in the same order.
func (s *Store) copyTree(ctx context.Context, src, dst string) (CopyStats, error) {
	var stats CopyStats

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) && rel != "." {
				stats.Vanished++
				s.logTransient(rel, "vanished")
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return walkErr
		}

		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if rel != "." && s.policy.IgnoreDir(d.Name()) {
				stats.Ignored++
				s.logTransient(rel, "ignorable")
				return filepath.SkipDir
			}
			return os.MkdirAll(target, 0750)
		}

		if !d.Type().IsRegular() {
			// Sockets, symlinks and devices are not portable.
			stats.Ignored++
			s.logTransient(rel, "not a regular file")
			return nil
		}

		if s.policy.IgnoreFile(d.Name()) {
			stats.Ignored++
			s.logTransient(rel, "ignorable")
			return nil
		}

		n, err := s.copyFile(path, target)
		switch classify(err) {
		case outcomeCopied:
			stats.Copied++
			stats.Bytes += n
			return nil
		case outcomeTransient:
			stats.Vanished++
			s.logTransient(rel, "vanished")
			return nil
		default:
			return fmt.Errorf("copy %s: %w", rel, err)
		}
	})

	return stats, err
}

// classify maps a copyFile error to an outcome. Only a source that no
// longer exists is transient; anything else fails the attempt.
func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeCopied
	case errors.Is(err, errSourceVanished):
		return outcomeTransient
	default:
		return outcomeRetryable
	}
}

var errSourceVanished = errors.New("snapshot: source vanished")

func (s *Store) copyFile(src, dst string) (int64, error) {
	in, err := s.open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, errSourceVanished
		}
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0600)
	if err != nil {
		return 0, err
	}

	n, err := io.CopyBuffer(out, in, make([]byte, copyBufferSize))
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}

func (s *Store) logTransient(rel, reason string) {
	s.logger.Debug("skip transient file",
		"code", domain.ErrTransientCopy.Code,
		"path", rel,
		"reason", reason,
	)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
