package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

// DefaultPollInterval is how often a capture session checks for open pages.
const DefaultPollInterval = 500 * time.Millisecond

// Config configures the engine.
type Config struct {
	// Bin is the browser executable. Empty looks up a local Chrome and
	// falls back to rod's managed download.
	Bin string

	// Headless applies to pool instances. Capture sessions are always headful.
	Headless bool

	// Stealth opens pages through go-rod/stealth.
	Stealth bool

	// ExtraArgs are appended to every launch, in --name[=value] form.
	ExtraArgs []string

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine launches local Chrome processes through go-rod.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg}
}

// Session is an interactive capture session.
type Session interface {
	// Probe reads identity attributes from a live page.
	Probe(ctx context.Context) (Probe, error)

	// Done is closed once every page is closed or the browser is gone.
	Done() <-chan struct{}

	// Close terminates the browser, leaving its user data dir in place.
	Close() error
}

// Instance is a pool browser restored from a snapshot.
type Instance interface {
	// RunTask performs prompt on a fresh page and returns the result line.
	RunTask(ctx context.Context, prompt string) (string, error)

	// Close kills the browser and removes its work dir.
	Close() error
}

// Probe holds the attributes a live page reports about itself.
type Probe struct {
	UserAgent string `json:"userAgent"`
	Language  string `json:"language"`
	Timezone  string `json:"timezone"`
	Platform  string `json:"platform"`
}

// CaptureOptions configures StartCapture.
type CaptureOptions struct {
	// UserDataDir receives the live browser state.
	UserDataDir string

	// StartURL is opened in the first page. Empty means about:blank.
	StartURL string
}

// LaunchOptions configures Launch.
type LaunchOptions struct {
	// UserDataDir is the restored user-state directory.
	UserDataDir string

	// WorkDir is removed on Close. It normally contains UserDataDir.
	WorkDir string

	// Descriptor carries launch args and page emulation settings.
	Descriptor domain.FingerprintDescriptor
}

// StartCapture launches a headful browser on a fresh user data dir.
func (e *Engine) StartCapture(ctx context.Context, opts CaptureOptions) (Session, error) {
	if opts.UserDataDir == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user data dir")
	}
	if err := os.MkdirAll(opts.UserDataDir, 0o700); err != nil {
		return nil, domain.ErrSnapshotWrite.WithCause(err)
	}

	l := e.launcher(opts.UserDataDir, false, domain.DefaultLaunchArgs)
	b, err := e.connect(ctx, l)
	if err != nil {
		return nil, err
	}

	page, err := e.newPage(b)
	if err != nil {
		b.Close()
		l.Kill()
		return nil, fmt.Errorf("browser: open page: %w", err)
	}
	target := opts.StartURL
	if target == "" {
		target = "about:blank"
	}
	if err := page.Context(ctx).Navigate(target); err != nil {
		e.cfg.Logger.Warn("browser: start url failed", "url", target, "error", err)
	}

	s := &captureSession{
		browser:  b,
		launcher: l,
		page:     page,
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
	go s.watch(e.cfg.PollInterval)

	e.cfg.Logger.Info("browser: capture session started", "user_data_dir", opts.UserDataDir, "pid", l.PID())
	return s, nil
}

// Launch starts a pool instance on a restored user-state directory and
// applies the descriptor's fingerprint to every page it opens.
func (e *Engine) Launch(ctx context.Context, opts LaunchOptions) (Instance, error) {
	if err := opts.Descriptor.Validate(); err != nil {
		return nil, err
	}
	l := e.launcher(opts.UserDataDir, e.cfg.Headless, opts.Descriptor.LaunchArgs)
	b, err := e.connect(ctx, l)
	if err != nil {
		return nil, err
	}
	e.cfg.Logger.Info("browser: instance launched", "work_dir", opts.WorkDir, "pid", l.PID())
	return &instance{
		engine:   e,
		browser:  b,
		launcher: l,
		desc:     opts.Descriptor.Clone(),
		workDir:  opts.WorkDir,
	}, nil
}

// launcher builds the process launcher. args use --name[=value] form.
func (e *Engine) launcher(userDataDir string, headless bool, args []string) *launcher.Launcher {
	l := launcher.New().Headless(headless).UserDataDir(userDataDir)
	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	} else if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}
	for _, arg := range append(append([]string(nil), args...), e.cfg.ExtraArgs...) {
		name, value, ok := parseArg(arg)
		if !ok {
			continue
		}
		// Profile location is owned by the engine.
		if name == flags.UserDataDir {
			continue
		}
		if value == "" {
			l = l.Set(name)
		} else {
			l = l.Set(name, value)
		}
	}
	return l
}

func (e *Engine) connect(ctx context.Context, l *launcher.Launcher) (*rod.Browser, error) {
	u, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return b, nil
}

func (e *Engine) newPage(b *rod.Browser) (*rod.Page, error) {
	if e.cfg.Stealth {
		return stealth.Page(b)
	}
	return b.Page(proto.TargetCreateTarget{URL: ""})
}

// parseArg splits "--name=value" into flag name and value.
func parseArg(arg string) (flags.Flag, string, bool) {
	arg = strings.TrimSpace(arg)
	if !strings.HasPrefix(arg, "-") {
		return "", "", false
	}
	arg = strings.TrimLeft(arg, "-")
	if arg == "" {
		return "", "", false
	}
	name, value, _ := strings.Cut(arg, "=")
	return flags.Flag(name), value, true
}
