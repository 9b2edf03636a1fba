package blob

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

func openTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	s, err := Open(cfg, slog.Default())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

func digest(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// uploadAll sends data in ChunkSize chunks and completes the upload.
func uploadAll(t *testing.T, s *Store, data []byte) *domain.Upload {
	t.Helper()
	ctx := context.Background()
	up, err := s.Create(ctx, "bb_env.tar.gz", int64(len(data)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for off := 0; off < len(data); off += domain.ChunkSize {
		end := min(off+domain.ChunkSize, len(data))
		if up, err = s.Append(ctx, up.ID, int64(off), bytes.NewReader(data[off:end])); err != nil {
			t.Fatalf("Append(%d) error = %v", off, err)
		}
	}
	done, err := s.Complete(ctx, up.ID, digest(data))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	return done
}

func readObject(t *testing.T, s *Store, id string) []byte {
	t.Helper()
	obj, err := s.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer obj.Close()
	got, err := io.ReadAll(obj)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return got
}

func TestStore_UploadLifecycle(t *testing.T) {
	for _, encrypted := range []bool{false, true} {
		name := "plain"
		cfg := Config{PruneInterval: 0}
		if encrypted {
			name = "encrypted"
			cfg.Passphrase = []byte("correct horse battery")
		}
		t.Run(name, func(t *testing.T) {
			s := openTestStore(t, cfg)
			data := randomBytes(2*domain.ChunkSize + 4321)

			done := uploadAll(t, s, data)
			if !done.IsComplete() || done.SHA256 != digest(data) || done.Encrypted != encrypted {
				t.Fatalf("Complete() = %+v", done)
			}
			if got := readObject(t, s, done.ID); !bytes.Equal(got, data) {
				t.Error("Open() content mismatch")
			}
			if _, err := os.Stat(s.partPath(done.ID)); !os.IsNotExist(err) {
				t.Errorf("part file still present: %v", err)
			}

			obj, err := s.Open(context.Background(), done.ID)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer obj.Close()
			if _, err := obj.Seek(domain.ChunkSize+10, io.SeekStart); err != nil {
				t.Fatalf("Seek() error = %v", err)
			}
			part := make([]byte, 100)
			if _, err := io.ReadFull(obj, part); err != nil {
				t.Fatalf("ReadFull() error = %v", err)
			}
			if !bytes.Equal(part, data[domain.ChunkSize+10:domain.ChunkSize+110]) {
				t.Error("ranged read mismatch")
			}
		})
	}
}

func TestStore_EncryptedAtRest(t *testing.T) {
	s := openTestStore(t, Config{Passphrase: []byte("correct horse battery")})
	data := bytes.Repeat([]byte("cookie-jar "), 5000)
	done := uploadAll(t, s, data)

	raw, err := os.ReadFile(s.archivePath(done))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if bytes.Contains(raw, []byte("cookie-jar")) {
		t.Error("sealed archive contains plaintext")
	}
	if !strings.HasSuffix(s.archivePath(done), sealedSuffix) {
		t.Errorf("archive path = %s", s.archivePath(done))
	}
}

func TestStore_ReopenKeepsStateAndKey(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir, Passphrase: []byte("correct horse battery")}
	ctx := context.Background()

	s, err := Open(cfg, slog.Default())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data := randomBytes(3000)
	done := uploadAll(t, s, data)
	pending, _ := s.Create(ctx, "next.tar.gz", 10)
	s.Append(ctx, pending.ID, 0, bytes.NewReader([]byte("abcd")))
	s.Close()

	s2 := openTestStore(t, cfg)
	if got := readObject(t, s2, done.ID); !bytes.Equal(got, data) {
		t.Error("archive unreadable after reopen")
	}
	st, err := s2.Status(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Offset != 4 || st.IsComplete() {
		t.Errorf("Status() after reopen = %+v, want offset 4 pending", st)
	}
	if _, err := s2.Append(ctx, pending.ID, 4, bytes.NewReader([]byte("efghij"))); err != nil {
		t.Fatalf("Append() after reopen error = %v", err)
	}
	if _, err := s2.Complete(ctx, pending.ID, digest([]byte("abcdefghij"))); err != nil {
		t.Fatalf("Complete() after reopen error = %v", err)
	}
}

func TestStore_AppendErrors(t *testing.T) {
	s := openTestStore(t, Config{})
	ctx := context.Background()
	up, err := s.Create(ctx, "a.tar.gz", 10)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		id      string
		offset  int64
		body    []byte
		wantErr error
	}{
		{"unknown id", "upl_01hzzzzzzzzzzzzzzzzzzzzzzz", 0, []byte("x"), domain.ErrUploadNotFound},
		{"malformed id", "../etc/passwd", 0, []byte("x"), domain.ErrUploadNotFound},
		{"offset ahead", up.ID, 5, []byte("x"), domain.ErrUploadOffsetMismatch},
		{"overflow", up.ID, 0, make([]byte, 11), domain.ErrUploadOverflow},
		{"too large", up.ID, 0, make([]byte, domain.ChunkSize+1), domain.ErrChunkTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Append(ctx, tt.id, tt.offset, bytes.NewReader(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Append() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	st, _ := s.Status(ctx, up.ID)
	if st.Offset != 0 {
		t.Errorf("rejected chunks moved offset to %d", st.Offset)
	}

	if _, err := s.Append(ctx, up.ID, 0, bytes.NewReader([]byte("12345"))); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	// A retried chunk at a stale offset is rejected with the current offset.
	_, err = s.Append(ctx, up.ID, 0, bytes.NewReader([]byte("12345")))
	if !errors.Is(err, domain.ErrUploadOffsetMismatch) || !strings.Contains(err.Error(), "expected offset 5") {
		t.Errorf("Append(stale) error = %v", err)
	}
}

func TestStore_CompleteErrors(t *testing.T) {
	s := openTestStore(t, Config{})
	ctx := context.Background()

	up, _ := s.Create(ctx, "a.tar.gz", 4)
	s.Append(ctx, up.ID, 0, bytes.NewReader([]byte("ab")))
	if _, err := s.Complete(ctx, up.ID, ""); !errors.Is(err, domain.ErrUploadIncomplete) {
		t.Errorf("Complete(partial) error = %v, want ErrUploadIncomplete", err)
	}
	s.Append(ctx, up.ID, 2, bytes.NewReader([]byte("cd")))
	if _, err := s.Complete(ctx, up.ID, digest([]byte("wxyz"))); !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Errorf("Complete(bad digest) error = %v, want ErrChecksumMismatch", err)
	}

	done, err := s.Complete(ctx, up.ID, strings.ToUpper(digest([]byte("abcd"))))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	again, err := s.Complete(ctx, up.ID, "")
	if err != nil || again.SHA256 != done.SHA256 {
		t.Errorf("repeated Complete() = %+v, %v", again, err)
	}
	if _, err := s.Append(ctx, up.ID, 4, bytes.NewReader(nil)); !errors.Is(err, domain.ErrUploadCompleted) {
		t.Errorf("Append(after complete) error = %v, want ErrUploadCompleted", err)
	}
}

func TestStore_CreateLimits(t *testing.T) {
	s := openTestStore(t, Config{MaxArchiveSize: 100})
	ctx := context.Background()
	if _, err := s.Create(ctx, "big", 101); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Create(oversize) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := s.Create(ctx, "neg", -1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Create(negative) error = %v, want ErrInvalidArgument", err)
	}

	empty, err := s.Create(ctx, "empty", 0)
	if err != nil {
		t.Fatalf("Create(0) error = %v", err)
	}
	if _, err := s.Complete(ctx, empty.ID, ""); err != nil {
		t.Fatalf("Complete(empty) error = %v", err)
	}
	if got := readObject(t, s, empty.ID); len(got) != 0 {
		t.Errorf("empty archive read %d bytes", len(got))
	}
}

func TestStore_OpenPending(t *testing.T) {
	s := openTestStore(t, Config{})
	up, _ := s.Create(context.Background(), "a", 3)
	if _, err := s.Open(context.Background(), up.ID); !errors.Is(err, domain.ErrUploadNotFound) {
		t.Errorf("Open(pending) error = %v, want ErrUploadNotFound", err)
	}
}

func TestStore_Prune(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	s := openTestStore(t, Config{UploadTTL: time.Hour, Now: clock})
	ctx := context.Background()

	stale, _ := s.Create(ctx, "stale", 10)
	done := uploadAll(t, s, []byte("kept"))

	now = now.Add(30 * time.Minute)
	fresh, _ := s.Create(ctx, "fresh", 10)

	now = now.Add(45 * time.Minute)
	n, err := s.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if _, err := s.Status(ctx, stale.ID); !errors.Is(err, domain.ErrUploadNotFound) {
		t.Errorf("Status(stale) error = %v, want ErrUploadNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(s.dir, stale.ID+partSuffix)); !os.IsNotExist(err) {
		t.Error("stale part file not removed")
	}
	if _, err := s.Status(ctx, fresh.ID); err != nil {
		t.Errorf("Status(fresh) error = %v", err)
	}
	if _, err := s.Status(ctx, done.ID); err != nil {
		t.Errorf("completed upload pruned: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List() = %d records, want 2", len(list))
	}
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t, Config{})
	ctx := context.Background()
	done := uploadAll(t, s, []byte("data"))
	if err := s.Delete(ctx, done.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Open(ctx, done.ID); !errors.Is(err, domain.ErrUploadNotFound) {
		t.Errorf("Open() after Delete error = %v", err)
	}
	if err := s.Delete(ctx, done.ID); !errors.Is(err, domain.ErrUploadNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestOpen_WeakPassphrase(t *testing.T) {
	_, err := Open(Config{DataDir: t.TempDir(), Passphrase: []byte("short")}, slog.Default())
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Open() error = %v, want ErrInvalidArgument", err)
	}
}
