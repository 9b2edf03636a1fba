package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, attempts int) *Store {
	t.Helper()
	s, err := NewStore(Config{MaxAttempts: attempts, RetryDelay: time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

// liveTree builds a state directory resembling a browser profile.
func liveTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Default", "Cookies"), "cookies")
	writeFile(t, filepath.Join(dir, "Default", "Local Storage", "leveldb", "000003.ldb"), "ls")
	writeFile(t, filepath.Join(dir, "Default", "Local Storage", "leveldb", "LOCK"), "")
	writeFile(t, filepath.Join(dir, "Default", "Preferences"), "{}")
	writeFile(t, filepath.Join(dir, "Local State"), "{}")
	writeFile(t, filepath.Join(dir, "0f8fad5b-d9cb-469f-a165-70867728950e.tmp"), "x")
	writeFile(t, filepath.Join(dir, "6ba7b810-9dad-11d1-80b4-00c04fd430c8"), "x")
	writeFile(t, filepath.Join(dir, "chrome_debug.log"), "log")
	writeFile(t, filepath.Join(dir, "Crashpad", "reports", "a.dmp"), "crash")
	writeFile(t, filepath.Join(dir, "0b1f2c3d-4e5f-6789-abcd-ef0123456789", "state"), "x")
	writeFile(t, filepath.Join(dir, "SingletonFoo"), "x")
	return dir
}

func descriptor() domain.FingerprintDescriptor {
	return domain.NewFingerprintDescriptor("Mozilla/5.0 test", domain.Viewport{Width: 1280, Height: 720}, domain.DefaultLaunchArgs)
}

func TestStore_WriteAndLoad(t *testing.T) {
	s := newTestStore(t, 3)
	live := liveTree(t)
	target := filepath.Join(t.TempDir(), "snap")

	stats, err := s.Write(context.Background(), live, descriptor(), target)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if stats.Copied != 4 {
		t.Errorf("Copied = %d, want 4", stats.Copied)
	}
	if stats.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", stats.Attempts)
	}

	for _, rel := range []string{"Default/Cookies", "Default/Preferences", "Local State", "Default/Local Storage/leveldb/000003.ldb"} {
		if _, err := os.Stat(filepath.Join(target, UserStateDirName, rel)); err != nil {
			t.Errorf("expected %s in snapshot: %v", rel, err)
		}
	}
	for _, rel := range []string{"Default/Local Storage/leveldb/LOCK", "chrome_debug.log", "Crashpad", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "0b1f2c3d-4e5f-6789-abcd-ef0123456789", "SingletonFoo"} {
		if _, err := os.Stat(filepath.Join(target, UserStateDirName, rel)); !os.IsNotExist(err) {
			t.Errorf("ignorable %s should not be copied", rel)
		}
	}

	snap, err := s.Load(target)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !snap.Descriptor.Equal(descriptor()) {
		t.Errorf("Descriptor = %+v, want %+v", snap.Descriptor, descriptor())
	}
	if snap.UserStateDir() != filepath.Join(target, UserStateDirName) {
		t.Errorf("UserStateDir() = %q", snap.UserStateDir())
	}
}

func TestStore_WriteOverwritesUserState(t *testing.T) {
	s := newTestStore(t, 1)
	target := t.TempDir()
	writeFile(t, filepath.Join(target, UserStateDirName, "stale"), "old")

	live := t.TempDir()
	writeFile(t, filepath.Join(live, "fresh"), "new")

	if _, err := s.Write(context.Background(), live, descriptor(), target); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, UserStateDirName, "stale")); !os.IsNotExist(err) {
		t.Error("previous user-state should be removed, not merged")
	}
	if _, err := os.Stat(filepath.Join(target, UserStateDirName, "fresh")); err != nil {
		t.Errorf("fresh file missing: %v", err)
	}
}

func TestStore_WriteMissingLiveDir(t *testing.T) {
	s := newTestStore(t, 1)
	_, err := s.Write(context.Background(), filepath.Join(t.TempDir(), "nope"), descriptor(), t.TempDir())
	if !errors.Is(err, domain.ErrSnapshotWrite) {
		t.Errorf("Write() error = %v, want ErrSnapshotWrite", err)
	}
}

// failingOpen fails opens of name until failures reaches zero.
func failingOpen(name string, failures *atomic.Int32, calls *atomic.Int32) func(string) (*os.File, error) {
	return func(path string) (*os.File, error) {
		if filepath.Base(path) == name {
			calls.Add(1)
			if failures.Add(-1) >= 0 {
				return nil, &os.PathError{Op: "open", Path: path, Err: errors.New("resource busy")}
			}
		}
		return os.Open(path)
	}
}

func TestStore_RetryRecovers(t *testing.T) {
	s := newTestStore(t, 5)
	var failures, calls atomic.Int32
	failures.Store(2)
	s.open = failingOpen("Cookies", &failures, &calls)

	target := t.TempDir()
	stats, err := s.Write(context.Background(), liveTree(t), descriptor(), target)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if stats.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", stats.Attempts)
	}
	if _, err := os.Stat(filepath.Join(target, UserStateDirName, "Default", "Cookies")); err != nil {
		t.Errorf("Cookies missing after recovery: %v", err)
	}
}

func TestStore_RetryExhausted(t *testing.T) {
	const attempts = 4
	s := newTestStore(t, attempts)
	var failures, calls atomic.Int32
	failures.Store(1000)
	s.open = failingOpen("Cookies", &failures, &calls)

	target := t.TempDir()
	_, err := s.Write(context.Background(), liveTree(t), descriptor(), target)
	if !errors.Is(err, domain.ErrCopyRetryExhausted) {
		t.Fatalf("Write() error = %v, want ErrCopyRetryExhausted", err)
	}
	if got := calls.Load(); got != attempts {
		t.Errorf("copy attempts = %d, want exactly %d", got, attempts)
	}
	if _, err := os.Stat(filepath.Join(target, DescriptorFileName)); !os.IsNotExist(err) {
		t.Error("descriptor must not be published after exhaustion")
	}
	if _, err := os.Stat(filepath.Join(target, UserStateDirName)); !os.IsNotExist(err) {
		t.Error("partial user-state must be removed after exhaustion")
	}
}

func TestStore_VanishedFileSkipped(t *testing.T) {
	s := newTestStore(t, 1)
	live := liveTree(t)
	victim := filepath.Join(live, "Default", "Preferences")
	s.open = func(path string) (*os.File, error) {
		if path == victim {
			os.Remove(victim)
		}
		return os.Open(path)
	}

	stats, err := s.Write(context.Background(), live, descriptor(), t.TempDir())
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if stats.Vanished != 1 {
		t.Errorf("Vanished = %d, want 1", stats.Vanished)
	}
	if stats.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", stats.Attempts)
	}
}

func TestStore_WriteCancelled(t *testing.T) {
	s, err := NewStore(Config{MaxAttempts: 5, RetryDelay: time.Hour}, testLogger())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	var failures, calls atomic.Int32
	failures.Store(1000)
	s.open = failingOpen("Cookies", &failures, &calls)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.Write(ctx, liveTree(t), descriptor(), t.TempDir())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Write() error = %v, want deadline exceeded", err)
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d, want 1 before cancellation", calls.Load())
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); !errors.Is(err, domain.ErrSnapshotInvalid) {
		t.Errorf("Load() error = %v, want ErrSnapshotInvalid", err)
	}

	writeFile(t, filepath.Join(dir, DescriptorFileName), "not json")
	if _, err := Load(dir); !errors.Is(err, domain.ErrSnapshotInvalid) {
		t.Errorf("Load() error = %v, want ErrSnapshotInvalid", err)
	}
}

func TestLoad_PartialUserStateIsValid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DescriptorFileName), `{"user_agent":"UA"}`)

	snap, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Descriptor.Viewport.Width != domain.DefaultViewportWidth {
		t.Errorf("Viewport = %+v, want default", snap.Descriptor.Viewport)
	}
}
