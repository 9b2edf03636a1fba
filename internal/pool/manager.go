package pool

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// Defaults.
const (
	DefaultMaxConcurrent = 100
	DefaultMaxIdleAge    = time.Hour
	DefaultSweepInterval = time.Minute
)

// Handle is a materialized environment owned by the pool.
type Handle interface {
	Close() error
}

// Materializer turns a locator into a running environment.
type Materializer interface {
	Materialize(ctx context.Context, locator, instanceID string) (Handle, error)
}

// MaterializerFunc adapts a function to Materializer.
type MaterializerFunc func(ctx context.Context, locator, instanceID string) (Handle, error)

// Materialize calls f.
func (f MaterializerFunc) Materialize(ctx context.Context, locator, instanceID string) (Handle, error) {
	return f(ctx, locator, instanceID)
}

// State is the lifecycle state of a registered instance.
type State string

const (
	StateIdle  State = "idle"
	StateInUse State = "in_use"
)

// Config configures a Manager.
type Config struct {
	// MaxConcurrent bounds admitted requests.
	MaxConcurrent int

	// MaxIdleAge is the idle time after which the sweep loop evicts an instance.
	MaxIdleAge time.Duration

	// SweepInterval is the period of the sweep loop.
	SweepInterval time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: DefaultMaxConcurrent,
		MaxIdleAge:    DefaultMaxIdleAge,
		SweepInterval: DefaultSweepInterval,
	}
}

type record struct {
	id        string
	locator   string
	handle    Handle
	state     State
	createdAt time.Time
	lastUsed  time.Time
}

// InstanceInfo describes a registered instance.
type InstanceInfo struct {
	ID        string    `json:"id"`
	Locator   string    `json:"locator"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	CapacityInUse  int `json:"capacity_in_use"`
	MaxConcurrent  int `json:"max_concurrent"`
	Instances      int `json:"instances"`
	InstancesInUse int `json:"instances_in_use"`
}

// flight is one shared materialization. Its context is detached from any
// single caller and cancelled when the last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Manager bounds concurrent requests and owns the instance registry.
// The capacity counter and the registry are guarded by one mutex.
// Materialization and handle shutdown run outside it.
type Manager struct {
	cfg        Config
	mat        Materializer
	logger     *slog.Logger
	metrics    *metrics
	maxIdleAge atomic.Int64

	mu       sync.Mutex
	capacity int
	records  map[string]*record
	closed   bool

	group   singleflight.Group
	flights map[string]*flight

	stopCh       chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	shutdownOnce sync.Once
}

// New creates a Manager.
func New(cfg Config, mat Materializer, logger *slog.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxIdleAge <= 0 {
		cfg.MaxIdleAge = DefaultMaxIdleAge
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:     cfg,
		mat:     mat,
		logger:  logger.With("component", "pool"),
		metrics: newMetrics(),
		records: make(map[string]*record),
		flights: make(map[string]*flight),
		stopCh:  make(chan struct{}),
	}
	m.maxIdleAge.Store(int64(cfg.MaxIdleAge))
	m.metrics.maxConcurrent.Set(float64(cfg.MaxConcurrent))
	return m
}

// AcquireCapacity takes an admission slot. It never blocks: false means
// the pool is exhausted.
func (m *Manager) AcquireCapacity() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.capacity >= m.cfg.MaxConcurrent {
		m.metrics.exhausted.Inc()
		return false
	}
	m.capacity++
	m.metrics.capacityInUse.Set(float64(m.capacity))
	return true
}

// ReleaseCapacity returns an admission slot. Releasing with no slot taken
// is logged and ignored.
func (m *Manager) ReleaseCapacity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capacity == 0 {
		m.metrics.doubleRelease.WithLabelValues("capacity").Inc()
		m.logger.Warn("capacity released with none acquired")
		return
	}
	m.capacity--
	m.metrics.capacityInUse.Set(float64(m.capacity))
}

// GetOrCreate returns the instance id for locator, materializing and
// registering an idle instance when none exists. Concurrent calls for the
// same locator share one materialization, which is cancelled only when
// every caller waiting on it has given up. A failed or cancelled
// materialization registers nothing.
func (m *Manager) GetOrCreate(ctx context.Context, locator string) (string, error) {
	if locator == "" {
		return "", domain.ErrMissingArgument.WithDetails("environment locator")
	}
	id := domain.DeriveInstanceID(locator)

	for {
		f, done, err := m.join(ctx, id, locator)
		if err != nil {
			return "", err
		}
		if done {
			return id, nil
		}

		ch := m.group.DoChan(id, func() (any, error) {
			defer m.endFlight(id, f)
			return nil, m.materialize(f.ctx, id, locator)
		})

		select {
		case res := <-ch:
			m.leave(id, f)
			if res.Err != nil {
				// Joined a flight abandoned by its other callers.
				if res.Err == context.Canceled && ctx.Err() == nil {
					continue
				}
				return "", res.Err
			}
			if res.Shared {
				m.logger.Debug("materialization shared", "instance_id", id)
			}
			return id, m.checkLocator(id, locator)
		case <-ctx.Done():
			m.leave(id, f)
			return "", ctx.Err()
		}
	}
}

// join registers the caller as a waiter on the materialization of id.
// done reports that the instance already exists.
func (m *Manager) join(ctx context.Context, id, locator string) (f *flight, done bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, domain.ErrPoolClosed
	}
	if rec, ok := m.records[id]; ok {
		return nil, true, locatorConflict(rec, locator)
	}
	f = m.flights[id]
	if f == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		m.flights[id] = f
	}
	f.waiters++
	return f, false, nil
}

// leave drops a waiter and cancels the flight once nobody waits on it.
func (m *Manager) leave(id string, f *flight) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if m.flights[id] == f {
		delete(m.flights, id)
	}
}

func (m *Manager) endFlight(id string, f *flight) {
	m.mu.Lock()
	if m.flights[id] == f {
		delete(m.flights, id)
	}
	m.mu.Unlock()
}

func (m *Manager) checkLocator(id, locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil
	}
	return locatorConflict(rec, locator)
}

// locatorConflict guards against two locators hashing to the same id.
func locatorConflict(rec *record, locator string) error {
	if rec.locator == locator {
		return nil
	}
	return domain.ErrEnvironmentUnavailable.WithDetailsf("instance %q is bound to another locator", rec.id)
}

func (m *Manager) materialize(ctx context.Context, id, locator string) error {
	m.mu.Lock()
	_, exists := m.records[id]
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return domain.ErrPoolClosed
	}
	if exists {
		return nil
	}

	start := time.Now()
	handle, err := m.mat.Materialize(ctx, locator, id)
	if err != nil {
		m.metrics.materializations.WithLabelValues("error").Inc()
		m.logger.Error("materialization failed", "instance_id", id, "locator", locator, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, domain.ErrEnvironmentUnavailable) {
			return err
		}
		return domain.ErrEnvironmentUnavailable.WithDetailsf("locator %q", locator).WithCause(err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.closeHandle(id, handle)
		m.metrics.materializations.WithLabelValues("discarded").Inc()
		return domain.ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		m.closeHandle(id, handle)
		m.metrics.materializations.WithLabelValues("discarded").Inc()
		return err
	}
	now := m.cfg.Now()
	m.records[id] = &record{
		id:        id,
		locator:   locator,
		handle:    handle,
		state:     StateIdle,
		createdAt: now,
		lastUsed:  now,
	}
	m.updateGaugesLocked()
	m.mu.Unlock()

	m.metrics.materializations.WithLabelValues("ok").Inc()
	m.logger.Info("instance registered",
		"instance_id", id,
		"locator", locator,
		"elapsed", time.Since(start))
	return nil
}

// AcquireInstance marks an idle instance in use and returns its handle.
// Unknown and busy instances both report false. It does not consult the
// capacity counter: callers take a slot with AcquireCapacity first, which
// is what keeps in-use instances within MaxConcurrent.
func (m *Manager) AcquireInstance(id string) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.state != StateIdle {
		return nil, false
	}
	rec.state = StateInUse
	rec.lastUsed = m.cfg.Now()
	m.updateGaugesLocked()
	return rec.handle, true
}

// ReleaseInstance marks an in-use instance idle. Releasing an idle or
// unknown instance is logged and ignored.
func (m *Manager) ReleaseInstance(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.state != StateInUse {
		m.metrics.doubleRelease.WithLabelValues("instance").Inc()
		m.logger.Warn("instance released while not in use", "instance_id", id, "known", ok)
		return
	}
	rec.state = StateIdle
	rec.lastUsed = m.cfg.Now()
	m.updateGaugesLocked()
}

// Sweep evicts idle instances unused for longer than maxIdleAge and
// returns how many were evicted. In-use instances are never evicted.
func (m *Manager) Sweep(maxIdleAge time.Duration) int {
	m.mu.Lock()
	now := m.cfg.Now()
	var evicted []*record
	for id, rec := range m.records {
		if rec.state == StateIdle && now.Sub(rec.lastUsed) > maxIdleAge {
			evicted = append(evicted, rec)
			delete(m.records, id)
		}
	}
	m.updateGaugesLocked()
	m.mu.Unlock()

	for _, rec := range evicted {
		m.closeHandle(rec.id, rec.handle)
		m.logger.Info("instance evicted", "instance_id", rec.id, "idle", now.Sub(rec.lastUsed))
	}
	m.metrics.evictions.Add(float64(len(evicted)))
	return len(evicted)
}

// Start runs the sweep loop until ctx is done or Shutdown is called.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.sweepLoop(ctx)
	})
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep(m.MaxIdleAge())
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every instance, idle or in use, and rejects further
// admissions. It is idempotent.
func (m *Manager) Shutdown() error {
	var errs []error
	m.shutdownOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()

		m.mu.Lock()
		m.closed = true
		records := m.records
		m.records = make(map[string]*record)
		m.updateGaugesLocked()
		m.mu.Unlock()

		for _, rec := range records {
			if err := rec.handle.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		m.logger.Info("pool shut down", "instances_closed", len(records))
	})
	return errors.Join(errs...)
}

// SetMaxIdleAge changes the idle age used by the sweep loop.
func (m *Manager) SetMaxIdleAge(d time.Duration) {
	if d > 0 {
		m.maxIdleAge.Store(int64(d))
	}
}

// MaxIdleAge returns the idle age used by the sweep loop.
func (m *Manager) MaxIdleAge() time.Duration {
	return time.Duration(m.maxIdleAge.Load())
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	inUse := 0
	for _, rec := range m.records {
		if rec.state == StateInUse {
			inUse++
		}
	}
	return Stats{
		CapacityInUse:  m.capacity,
		MaxConcurrent:  m.cfg.MaxConcurrent,
		Instances:      len(m.records),
		InstancesInUse: inUse,
	}
}

// Instances lists registered instances ordered by id.
func (m *Manager) Instances() []InstanceInfo {
	m.mu.Lock()
	out := make([]InstanceInfo, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, InstanceInfo{
			ID:        rec.id,
			Locator:   rec.locator,
			State:     rec.state,
			CreatedAt: rec.createdAt,
			LastUsed:  rec.lastUsed,
		})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) closeHandle(id string, h Handle) {
	if err := h.Close(); err != nil {
		m.logger.Warn("instance close failed", "instance_id", id, "error", err)
	}
}

func (m *Manager) updateGaugesLocked() {
	inUse := 0
	for _, rec := range m.records {
		if rec.state == StateInUse {
			inUse++
		}
	}
	m.metrics.instances.Set(float64(len(m.records)))
	m.metrics.instancesInUse.Set(float64(inUse))
}
