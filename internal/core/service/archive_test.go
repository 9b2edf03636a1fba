package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/transport"
)

type recordingDownloader struct {
	locators []string
}

func (r *recordingDownloader) Download(_ context.Context, locator, destPath string) error {
	r.locators = append(r.locators, locator)
	return os.WriteFile(destPath, []byte("remote"), 0o640)
}

func storeArchive(t *testing.T, svc *UploadService, data []byte) string {
	t.Helper()
	ctx := context.Background()
	up, err := svc.Create(ctx, &CreateUploadRequest{Size: int64(len(data))})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Append(ctx, &AppendChunkRequest{UploadID: up.ID, Body: bytes.NewReader(data)}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := svc.Complete(ctx, &CompleteUploadRequest{UploadID: up.ID}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	return up.ID
}

func TestArchiveDownloader(t *testing.T) {
	svc := newUploadService(t)
	data := bytes.Repeat([]byte("archive"), 500)
	id := storeArchive(t, svc, data)

	next := &recordingDownloader{}
	d := NewArchiveDownloader(svc, next, "http://127.0.0.1:8000", "https://bb.example.com")
	dir := t.TempDir()

	local := "https://BB.example.com" + transport.ArchivesPath + "/" + id + ".tar.gz"
	dest := filepath.Join(dir, "local.tar.gz")
	if err := d.Download(context.Background(), local, dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("local archive content mismatch")
	}
	if len(next.locators) != 0 {
		t.Errorf("local locator forwarded to next: %v", next.locators)
	}

	remote := []string{
		"https://other.example.com" + transport.ArchivesPath + "/" + id + ".tar.gz",
		"http://127.0.0.1:8000/files/env.tar.gz",
		"s3://bucket/env.tar.gz",
		"file:///tmp/env.tar.gz",
	}
	for i, loc := range remote {
		if err := d.Download(context.Background(), loc, filepath.Join(dir, "remote-"+string(rune('a'+i)))); err != nil {
			t.Fatalf("Download(%q) error = %v", loc, err)
		}
	}
	if len(next.locators) != len(remote) {
		t.Errorf("forwarded %d locators, want %d", len(next.locators), len(remote))
	}
}

func TestArchiveDownloader_Missing(t *testing.T) {
	svc := newUploadService(t)
	d := NewArchiveDownloader(svc, &recordingDownloader{}, "http://127.0.0.1:8000")

	locator := "http://127.0.0.1:8000" + transport.ArchivesPath + "/upl_01hzzzzzzzzzzzzzzzzzzzzzzz.tar.gz"
	err := d.Download(context.Background(), locator, filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, domain.ErrUploadNotFound) {
		t.Errorf("Download() error = %v, want ErrUploadNotFound", err)
	}
}

func TestArchiveDownloader_Cancelled(t *testing.T) {
	svc := newUploadService(t)
	id := storeArchive(t, svc, []byte("data"))
	d := NewArchiveDownloader(svc, &recordingDownloader{}, "http://127.0.0.1:8000")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(t.TempDir(), "x")
	err := d.Download(ctx, "http://127.0.0.1:8000"+transport.ArchivesPath+"/"+id, dest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Download() error = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("partial destination left behind")
	}
}
