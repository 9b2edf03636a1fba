package benchmark

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/storage/snapshot"
)

// ProfileSizes are user-state sizes in files of 64 KiB.
var ProfileSizes = []int{16, 128, 512}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeSnapshot writes a snapshot with files random 64 KiB files.
func makeSnapshot(b *testing.B, files int) string {
	b.Helper()
	dir := filepath.Join(b.TempDir(), "bb_env")
	state := filepath.Join(dir, snapshot.UserStateDirName, "Default", "Cache")
	if err := os.MkdirAll(state, 0o750); err != nil {
		b.Fatal(err)
	}
	buf := make([]byte, 64<<10)
	for i := 0; i < files; i++ {
		rand.Read(buf[:len(buf)/2])
		if err := os.WriteFile(filepath.Join(state, fmt.Sprintf("f_%06d", i)), buf, 0o640); err != nil {
			b.Fatal(err)
		}
	}

	desc := domain.NewFingerprintDescriptor("BenchAgent/1.0", domain.Viewport{}, nil)
	data, err := desc.Marshal()
	if err != nil {
		b.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, snapshot.DescriptorFileName), data, 0o640); err != nil {
		b.Fatal(err)
	}
	return dir
}
