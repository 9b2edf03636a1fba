package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hommy-master/browserbox/internal/core/domain"
	"github.com/Hommy-master/browserbox/internal/storage"
	"github.com/Hommy-master/browserbox/pkg/cmap"
	"github.com/Hommy-master/browserbox/pkg/crypto/adaptive"
)

const (
	// DefaultMaxArchiveSize bounds a single upload.
	DefaultMaxArchiveSize int64 = 2 << 30

	// DefaultUploadTTL is how long a pending upload may sit idle.
	DefaultUploadTTL = 24 * time.Hour

	blobsDirName = "blobs"
	metaDirName  = "meta"

	partSuffix    = ".part"
	archiveSuffix = ".tar.gz"
	sealedSuffix  = ".tar.gz.enc"

	uploadKeyPrefix = "upload/"
	saltKey         = "meta/salt"
	subkeyInfo      = "browserbox/archive/v1"
)

// Config configures a Store.
type Config struct {
	// DataDir holds blobs/ and meta/.
	DataDir string

	// MaxArchiveSize is the largest declared size accepted by Create.
	MaxArchiveSize int64

	// UploadTTL is the idle age after which pending uploads are pruned.
	UploadTTL time.Duration

	// PruneInterval is the period of the background prune loop. Zero disables it.
	PruneInterval time.Duration

	// Passphrase enables at-rest encryption of completed archives.
	Passphrase []byte

	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultConfig returns the default configuration for dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:        dataDir,
		MaxArchiveSize: DefaultMaxArchiveSize,
		UploadTTL:      DefaultUploadTTL,
		PruneInterval:  time.Hour,
	}
}

// session serializes writers of one pending upload.
type session struct {
	mu sync.Mutex
	up *domain.Upload
}

// Store keeps uploaded archives. Records live in Badger; pending uploads
// are also indexed in memory so chunk appends avoid a metadata read.
type Store struct {
	cfg     Config
	dir     string
	kv      *storage.BadgerEngine
	active  *cmap.Map[*session]
	cipher  adaptive.Cipher
	logger  *slog.Logger
	metrics *metrics

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open opens or creates a store under cfg.DataDir.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, domain.ErrMissingArgument.WithDetails("storage data dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxArchiveSize <= 0 {
		cfg.MaxArchiveSize = DefaultMaxArchiveSize
	}
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = DefaultUploadTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dir := filepath.Join(cfg.DataDir, blobsDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	kv, err := storage.NewBadgerEngine(storage.DefaultBadgerConfig(filepath.Join(cfg.DataDir, metaDirName)), logger)
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	s := &Store{
		cfg:     cfg,
		dir:     dir,
		kv:      kv,
		active:  cmap.New[*session](),
		logger:  logger,
		metrics: newMetrics(),
		stopCh:  make(chan struct{}),
	}

	if len(cfg.Passphrase) > 0 {
		if s.cipher, err = s.loadCipher(context.Background(), cfg.Passphrase); err != nil {
			kv.Close()
			return nil, err
		}
	}

	if err := s.loadPending(context.Background()); err != nil {
		kv.Close()
		return nil, err
	}

	if cfg.PruneInterval > 0 {
		s.wg.Add(1)
		go s.pruneLoop()
	}

	logger.Info("archive store opened",
		"dir", dir,
		"encrypted", s.cipher != nil,
		"pending_uploads", s.active.Count())
	return s, nil
}

// Encrypted reports whether completed archives are sealed at rest.
func (s *Store) Encrypted() bool {
	return s.cipher != nil
}

// MaxArchiveSize returns the configured upload size bound.
func (s *Store) MaxArchiveSize() int64 {
	return s.cfg.MaxArchiveSize
}

// loadCipher derives the archive key from passphrase and the persisted salt,
// creating the salt on first use.
func (s *Store) loadCipher(ctx context.Context, passphrase []byte) (adaptive.Cipher, error) {
	salt, err := s.kv.Get(ctx, []byte(saltKey))
	if errors.Is(err, storage.ErrKeyNotFound) {
		if salt, err = adaptive.NewSalt(); err != nil {
			return nil, domain.ErrInternalServer.WithCause(err)
		}
		if err = s.kv.Set(ctx, []byte(saltKey), salt); err != nil {
			return nil, domain.ErrStorageError.WithCause(err)
		}
	} else if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}

	master, err := adaptive.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("storage.encryption_passphrase").WithCause(err)
	}
	defer adaptive.Zero(master)

	key, err := adaptive.Subkey(master, subkeyInfo)
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	defer adaptive.Zero(key)

	c, err := adaptive.New(key)
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	return c, nil
}

// loadPending indexes pending uploads left by a previous run.
func (s *Store) loadPending(ctx context.Context) error {
	var decodeErr error
	err := s.kv.Scan(ctx, []byte(uploadKeyPrefix), func(_, value []byte) bool {
		var up domain.Upload
		if err := json.Unmarshal(value, &up); err != nil {
			decodeErr = err
			return false
		}
		if up.IsComplete() {
			return true
		}
		// The part file is the source of truth for the committed offset.
		if fi, err := os.Stat(s.partPath(up.ID)); err == nil && fi.Size() < up.Offset {
			up.Offset = fi.Size()
		}
		s.active.Set(up.ID, &session{up: &up})
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	s.metrics.active.Set(float64(s.active.Count()))
	return nil
}

// List returns every known upload record.
func (s *Store) List(ctx context.Context) ([]*domain.Upload, error) {
	var (
		out       []*domain.Upload
		decodeErr error
	)
	err := s.kv.Scan(ctx, []byte(uploadKeyPrefix), func(_, value []byte) bool {
		var up domain.Upload
		if decodeErr = json.Unmarshal(value, &up); decodeErr != nil {
			return false
		}
		out = append(out, &up)
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return nil, domain.ErrStorageError.WithCause(err)
	}
	return out, nil
}

// Prune deletes pending uploads idle for longer than the upload TTL.
func (s *Store) Prune(ctx context.Context) (int, error) {
	cutoff := s.cfg.Now().Add(-s.cfg.UploadTTL)

	var stale []string
	s.active.Range(func(id string, sess *session) bool {
		sess.mu.Lock()
		if sess.up.UpdatedAtTime().Before(cutoff) {
			stale = append(stale, id)
		}
		sess.mu.Unlock()
		return true
	})

	pruned := 0
	for _, id := range stale {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		if err := s.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrUploadNotFound) {
			return pruned, err
		}
		pruned++
	}
	if pruned > 0 {
		s.metrics.pruned.Add(float64(pruned))
		s.logger.Info("pruned stale uploads", "count", pruned, "ttl", s.cfg.UploadTTL)
	}
	return pruned, nil
}

// Delete removes an upload and its data.
func (s *Store) Delete(ctx context.Context, id string) error {
	up, err := s.Status(ctx, id)
	if err != nil {
		return err
	}
	if sess, ok := s.active.Pop(id); ok {
		// Wait out an in-progress append.
		sess.mu.Lock()
		defer sess.mu.Unlock()
	}
	for _, p := range []string{s.partPath(id), s.archivePath(up)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return domain.ErrStorageError.WithCause(err)
		}
	}
	if err := s.kv.Delete(ctx, uploadKey(id)); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	s.metrics.active.Set(float64(s.active.Count()))
	return nil
}

// RegisterMetrics registers store and metadata metrics with registry.
func (s *Store) RegisterMetrics(registry prometheus.Registerer) {
	s.metrics.register(registry)
	s.kv.RegisterMetrics(registry)
}

// Close stops the prune loop and closes the metadata store.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		err = s.kv.Close()
	})
	return err
}

func (s *Store) pruneLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := s.Prune(ctx); err != nil {
				s.logger.Error("upload prune failed", "error", err)
			}
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) put(ctx context.Context, up *domain.Upload) error {
	data, err := json.Marshal(up)
	if err != nil {
		return domain.ErrInternalServer.WithCause(err)
	}
	if err := s.kv.Set(ctx, uploadKey(up.ID), data); err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

func (s *Store) partPath(id string) string {
	return filepath.Join(s.dir, id+partSuffix)
}

func (s *Store) archivePath(up *domain.Upload) string {
	if up.Encrypted {
		return filepath.Join(s.dir, up.ID+sealedSuffix)
	}
	return filepath.Join(s.dir, up.ID+archiveSuffix)
}

func uploadKey(id string) []byte {
	return []byte(uploadKeyPrefix + id)
}

func notFound(id string) error {
	return domain.ErrUploadNotFound.WithDetails(fmt.Sprintf("upload %q", id))
}
