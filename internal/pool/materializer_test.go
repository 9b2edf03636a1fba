package pool

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Hommy-master/browserbox/internal/browser"
	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/storage/archive"
	"github.com/Hommy-master/browserbox/internal/storage/snapshot"
)

type copyDownloader struct {
	src string
}

func (d copyDownloader) Download(ctx context.Context, locator, destPath string) error {
	in, err := os.Open(d.src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type fakeInstance struct {
	closed bool
}

func (i *fakeInstance) RunTask(ctx context.Context, prompt string) (string, error) {
	return "ok", nil
}

func (i *fakeInstance) Close() error {
	i.closed = true
	return nil
}

type fakeLauncher struct {
	opts browser.LaunchOptions
	err  error
}

func (l *fakeLauncher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Instance, error) {
	l.opts = opts
	if l.err != nil {
		return nil, l.err
	}
	return &fakeInstance{}, nil
}

func buildArchive(t *testing.T, desc domain.FingerprintDescriptor) string {
	t.Helper()
	root := t.TempDir()
	live := filepath.Join(root, "live")
	if err := os.MkdirAll(filepath.Join(live, "Default"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(live, "Default", "Cookies"), []byte("cookie-jar"), 0o640); err != nil {
		t.Fatal(err)
	}

	store, err := snapshot.NewStore(snapshot.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	snapDir := filepath.Join(root, "snap")
	if _, err := store.Write(context.Background(), live, desc, snapDir); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	archivePath := filepath.Join(root, archive.DefaultArchiveName)
	if _, err := archive.New().Pack(context.Background(), snapDir, archivePath); err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	return archivePath
}

func TestEnvironmentMaterializer(t *testing.T) {
	desc := domain.NewFingerprintDescriptor("Mozilla/5.0 test", domain.Viewport{Width: 1280, Height: 720}, nil)
	src := buildArchive(t, desc)
	workDir := t.TempDir()
	launcher := &fakeLauncher{}

	m := NewEnvironmentMaterializer(copyDownloader{src: src}, archive.New(), launcher, workDir, nil)
	h, err := m.Materialize(context.Background(), "file://"+src, "env-0001")
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if _, ok := h.(browser.Instance); !ok {
		t.Fatalf("Materialize() handle %T is not a browser.Instance", h)
	}

	if !launcher.opts.Descriptor.Equal(desc) {
		t.Errorf("Descriptor = %+v, want %+v", launcher.opts.Descriptor, desc)
	}
	data, err := os.ReadFile(filepath.Join(launcher.opts.UserDataDir, "Default", "Cookies"))
	if err != nil {
		t.Fatalf("restored user state: %v", err)
	}
	if string(data) != "cookie-jar" {
		t.Errorf("Cookies = %q, want cookie-jar", data)
	}
	if filepath.Dir(launcher.opts.WorkDir) != workDir {
		t.Errorf("WorkDir = %q, want a child of %q", launcher.opts.WorkDir, workDir)
	}
	if _, err := os.Stat(filepath.Join(launcher.opts.WorkDir, archive.DefaultArchiveName)); !os.IsNotExist(err) {
		t.Errorf("downloaded archive was not removed: %v", err)
	}
}

func TestEnvironmentMaterializer_Failures(t *testing.T) {
	desc := domain.NewFingerprintDescriptor("Mozilla/5.0 test", domain.Viewport{}, nil)
	src := buildArchive(t, desc)
	garbage := filepath.Join(t.TempDir(), "garbage.tar.gz")
	if err := os.WriteFile(garbage, []byte("not an archive"), 0o640); err != nil {
		t.Fatal(err)
	}
	launchErr := errors.New("chrome missing")

	tests := []struct {
		name     string
		src      string
		launcher *fakeLauncher
		wantErr  error
	}{
		{"download", filepath.Join(t.TempDir(), "missing"), &fakeLauncher{}, os.ErrNotExist},
		{"unpack", garbage, &fakeLauncher{}, domain.ErrUnpack},
		{"launch", src, &fakeLauncher{err: launchErr}, launchErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workDir := t.TempDir()
			m := NewEnvironmentMaterializer(copyDownloader{src: tt.src}, archive.New(), tt.launcher, workDir, nil)
			if _, err := m.Materialize(context.Background(), "file://"+tt.src, "env"); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Materialize() error = %v, want %v", err, tt.wantErr)
			}
			entries, err := os.ReadDir(workDir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 0 {
				t.Errorf("work directory not cleaned up: %d entries left", len(entries))
			}
		})
	}
}
