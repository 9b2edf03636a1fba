package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// randomArchive writes size random bytes and returns the path and content.
func randomArchive(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "bb_env.tar.gz")
	if err := os.WriteFile(path, data, 0640); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path, data
}

func assertFile(t *testing.T, path string, want []byte) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("file content differs: got %d bytes, want %d", len(got), len(want))
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Error("partial file should be renamed away")
	}
}

func TestScheme(t *testing.T) {
	tests := []struct {
		locator string
		want    string
	}{
		{"http://host/a.tar.gz", "http"},
		{"HTTPS://host/a.tar.gz", "https"},
		{"s3://bucket/key", "s3"},
		{"file:///tmp/a.tar.gz", "file"},
		{"/tmp/a.tar.gz", "file"},
		{"relative/a.tar.gz", "file"},
		{`C:\envs\a.tar.gz`, "file"},
	}
	for _, tt := range tests {
		if got := Scheme(tt.locator); got != tt.want {
			t.Errorf("Scheme(%q) = %q, want %q", tt.locator, got, tt.want)
		}
	}
}

type recordingTransport struct {
	downloads []string
}

func (r *recordingTransport) Upload(ctx context.Context, archivePath string) (string, error) {
	return "mem://" + filepath.Base(archivePath), nil
}

func (r *recordingTransport) Download(ctx context.Context, locator, destPath string) error {
	r.downloads = append(r.downloads, locator)
	return nil
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	if _, err := r.Upload(context.Background(), "a.tar.gz"); !errors.Is(err, domain.ErrLocatorUnsupported) {
		t.Errorf("Upload() without uploader error = %v", err)
	}

	rec := &recordingTransport{}
	r.Register(rec, "http", "HTTPS")
	r.SetUploader(rec)

	loc, err := r.Upload(context.Background(), "/x/a.tar.gz")
	if err != nil || loc != "mem://a.tar.gz" {
		t.Errorf("Upload() = %q, %v", loc, err)
	}
	if err := r.Download(context.Background(), "https://h/a", "dest"); err != nil {
		t.Errorf("Download() error = %v", err)
	}
	if len(rec.downloads) != 1 {
		t.Errorf("downloads = %v", rec.downloads)
	}
	if err := r.Download(context.Background(), "ftp://h/a", "dest"); !errors.Is(err, domain.ErrLocatorUnsupported) {
		t.Errorf("Download(ftp) error = %v, want ErrLocatorUnsupported", err)
	}
	if len(r.Schemes()) != 2 {
		t.Errorf("Schemes() = %v", r.Schemes())
	}
}

func TestCopyChunks_Progress(t *testing.T) {
	src := bytes.NewReader(make([]byte, 2*domain.ChunkSize+5))
	var dst bytes.Buffer
	var calls []int64
	n, err := copyChunks(context.Background(), &dst, src, 0, int64(src.Len()), func(done, total int64) {
		calls = append(calls, done)
	})
	if err != nil {
		t.Fatalf("copyChunks() error = %v", err)
	}
	if n != 2*domain.ChunkSize+5 {
		t.Errorf("n = %d", n)
	}
	if len(calls) != 3 {
		t.Errorf("progress calls = %v, want one per chunk", calls)
	}
}

func TestCopyChunks_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := copyChunks(ctx, io.Discard, bytes.NewReader(make([]byte, 10)), 0, 10, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("copyChunks() error = %v, want context.Canceled", err)
	}
}
