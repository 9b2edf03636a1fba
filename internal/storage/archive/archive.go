package archive

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// DefaultArchiveName is the file name the capture side produces.
const DefaultArchiveName = "bb_env.tar.gz"

// epoch is stamped on every entry so packing the same tree twice yields the
// same bytes.
var epoch = time.Unix(0, 0).UTC()

// Info describes a packed archive.
type Info struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	SHA256  string `json:"sha256"`
	Entries int    `json:"entries"`
}

// Archiver packs snapshot directories into tar.gz archives and back.
type Archiver struct {
	level  int
	logger *slog.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithLevel sets the gzip compression level.
func WithLevel(level int) Option {
	return func(a *Archiver) {
		a.level = level
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger
	}
}

// New creates an Archiver.
func New(opts ...Option) *Archiver {
	a := &Archiver{
		level:  gzip.DefaultCompression,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "archive")
	return a
}

// Pack writes every directory and regular file under snapshotDir into
// archivePath, with POSIX paths relative to snapshotDir. The archive is
// written to a temporary file and renamed into place.
func (a *Archiver) Pack(ctx context.Context, snapshotDir, archivePath string) (*Info, error) {
	st, err := os.Stat(snapshotDir)
	if err != nil {
		return nil, domain.ErrPack.WithDetails("snapshot directory not found").WithCause(err)
	}
	if !st.IsDir() {
		return nil, domain.ErrPack.WithDetails("snapshot path is not a directory")
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0750); err != nil {
		return nil, domain.ErrPack.WithCause(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".pack-*.tmp")
	if err != nil {
		return nil, domain.ErrPack.WithCause(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hash := sha256.New()
	counter := &countingWriter{}
	gz, err := gzip.NewWriterLevel(io.MultiWriter(tmp, hash, counter), a.level)
	if err != nil {
		tmp.Close()
		return nil, domain.ErrPack.WithCause(err)
	}
	gz.ModTime = epoch
	tw := tar.NewWriter(gz)

	entries, err := writeTree(ctx, tw, snapshotDir)
	if err == nil {
		err = tw.Close()
	}
	if err == nil {
		err = gz.Close()
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, domain.ErrPack.WithCause(err)
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		return nil, domain.ErrPack.WithCause(err)
	}

	info := &Info{
		Path:    archivePath,
		Size:    counter.n,
		SHA256:  hex.EncodeToString(hash.Sum(nil)),
		Entries: entries,
	}
	a.logger.Info("archive packed",
		"source", snapshotDir,
		"archive", archivePath,
		"entries", entries,
		"size", info.Size,
	)
	return info, nil
}

func writeTree(ctx context.Context, tw *tar.Writer, root string) (int, error) {
	entries := 0
	buf := make([]byte, domain.ChunkSize)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			entries++
			return tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     name + "/",
				Mode:     int64(info.Mode().Perm()),
				ModTime:  epoch,
				Format:   tar.FormatPAX,
			})
		case info.Mode().IsRegular():
			entries++
			return writeFile(tw, p, name, info, buf)
		default:
			return nil
		}
	})
	return entries, err
}

func writeFile(tw *tar.Writer, src, name string, info fs.FileInfo, buf []byte) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  epoch,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	// The header size is fixed; a file that grew or shrank since Stat is
	// caught by tar's length check.
	_, err = io.CopyBuffer(tw, io.LimitReader(f, info.Size()), buf)
	return err
}

// Unpack extracts archivePath into targetDir, creating it when absent, and
// returns targetDir. Entries that would land outside targetDir, or that are
// not plain files or directories, fail the whole unpack with
// ErrUnsafeArchiveEntry.
func (a *Archiver) Unpack(ctx context.Context, archivePath, targetDir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", domain.ErrUnpack.WithDetails("archive not found").WithCause(err)
	}
	defer f.Close()

	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", domain.ErrUnpack.WithCause(err)
	}
	root, err := filepath.Abs(targetDir)
	if err != nil {
		return "", domain.ErrUnpack.WithCause(err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", domain.ErrUnpack.WithDetails("not a gzip stream").WithCause(err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	buf := make([]byte, domain.ChunkSize)
	entries := 0
	for {
		if err := ctx.Err(); err != nil {
			return "", domain.ErrUnpack.WithDetails("unpack cancelled").WithCause(err)
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", domain.ErrUnpack.WithDetails("corrupt or truncated archive").WithCause(err)
		}

		dest, err := safeJoin(root, hdr.Name)
		if err != nil {
			return "", err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, dirMode(hdr)); err != nil {
				return "", domain.ErrUnpack.WithCause(err)
			}
		case tar.TypeXGlobalHeader:
			continue
		case tar.TypeReg:
			if err := extractFile(tr, dest, hdr, buf); err != nil {
				return "", domain.ErrUnpack.WithDetailsf("extract %s", hdr.Name).WithCause(err)
			}
		default:
			return "", domain.ErrUnsafeArchiveEntry.WithDetailsf("%s: unsupported entry type %q", hdr.Name, hdr.Typeflag)
		}
		entries++
	}

	a.logger.Info("archive unpacked",
		"archive", archivePath,
		"target", targetDir,
		"entries", entries,
	)
	return targetDir, nil
}

// safeJoin resolves an entry name under root, rejecting absolute names and
// any name whose cleaned form escapes root.
func safeJoin(root, name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") || filepath.IsAbs(name) {
		return "", domain.ErrUnsafeArchiveEntry.WithDetails(name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", domain.ErrUnsafeArchiveEntry.WithDetails(name)
	}

	dest := filepath.Join(root, filepath.FromSlash(clean))
	if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
		return "", domain.ErrUnsafeArchiveEntry.WithDetails(name)
	}
	return dest, nil
}

func extractFile(r io.Reader, dest string, hdr *tar.Header, buf []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode(hdr))
	if err != nil {
		return err
	}
	if _, err := io.CopyBuffer(out, r, buf); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func fileMode(hdr *tar.Header) os.FileMode {
	return os.FileMode(hdr.Mode).Perm() | 0600
}

func dirMode(hdr *tar.Header) os.FileMode {
	return os.FileMode(hdr.Mode).Perm() | 0700
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
