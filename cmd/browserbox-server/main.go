package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/Hommy-master/browserbox/internal/browser"
	"github.com/Hommy-master/browserbox/internal/core/service"
	"github.com/Hommy-master/browserbox/internal/infra/buildinfo"
	"github.com/Hommy-master/browserbox/internal/infra/confloader"
	"github.com/Hommy-master/browserbox/internal/infra/shutdown"
	"github.com/Hommy-master/browserbox/internal/infra/tlsroots"
	"github.com/Hommy-master/browserbox/internal/pool"
	"github.com/Hommy-master/browserbox/internal/server/config"
	"github.com/Hommy-master/browserbox/internal/server/httpserver"
	"github.com/Hommy-master/browserbox/internal/server/httpserver/handler"
	"github.com/Hommy-master/browserbox/internal/storage/archive"
	"github.com/Hommy-master/browserbox/internal/storage/blob"
	"github.com/Hommy-master/browserbox/internal/telemetry/logger"
	"github.com/Hommy-master/browserbox/internal/telemetry/metric"
	"github.com/Hommy-master/browserbox/internal/transport"
	"github.com/Hommy-master/browserbox/pkg/token"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("browserbox-server %s\n", buildinfo.String())
		return nil
	}

	loader, cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := log.Slog()

	info := buildinfo.Get()
	log.Info("starting browserbox-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", loader.FilePath())
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := metric.NewRegistry()
	shutdownHandler := shutdown.NewHandler(shutdownTimeout, slogLogger)

	// Archive store
	storeCfg := blob.DefaultConfig(cfg.Storage.DataDir)
	storeCfg.MaxArchiveSize = cfg.Storage.MaxArchiveSize
	storeCfg.UploadTTL = cfg.Storage.UploadTTL
	if cfg.Storage.EncryptionPassphrase != "" {
		storeCfg.Passphrase = []byte(cfg.Storage.EncryptionPassphrase)
	}
	store, err := blob.Open(storeCfg, slogLogger.With("component", "blob"))
	if err != nil {
		return fmt.Errorf("open archive store: %w", err)
	}
	store.RegisterMetrics(metrics.Registerer())
	log.Info("archive store opened", "dir", storeCfg.DataDir, "encrypted", store.Encrypted())
	shutdownHandler.OnShutdown("archive store", func(context.Context) error {
		return store.Close()
	})
	uploads := service.NewUploadService(store)

	// Transports used to fetch environments
	router, err := initTransports(ctx, cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("init transports: %w", err)
	}
	downloader := service.NewArchiveDownloader(uploads, router, cfg.BaseURL(), "http://"+cfg.Server.HTTP.Addr)

	// Browser pool
	engine := browser.NewEngine(browser.Config{
		Bin:       cfg.Browser.Bin,
		Headless:  cfg.Browser.Headless,
		Stealth:   cfg.Browser.Stealth,
		ExtraArgs: cfg.Browser.ExtraArgs,
		Logger:    slogLogger.With("component", "browser"),
	})
	materializer := pool.NewEnvironmentMaterializer(
		downloader,
		archive.New(archive.WithLogger(slogLogger)),
		engine,
		cfg.InstanceWorkDir(),
		slogLogger.With("component", "materializer"),
	)
	mgr := pool.New(pool.Config{
		MaxConcurrent: cfg.Pool.MaxConcurrent,
		MaxIdleAge:    cfg.Pool.MaxIdleAge,
		SweepInterval: cfg.Pool.SweepInterval,
	}, materializer, slogLogger.With("component", "pool"))
	if err := mgr.RegisterMetrics(metrics.Registerer()); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}
	mgr.Start(ctx)
	shutdownHandler.OnShutdown("pool", func(context.Context) error {
		return mgr.Shutdown()
	})

	// Config hot reload
	if loader.FilePath() != "" {
		watcher, err := startConfigWatcher(loader, mgr, slogLogger)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
			return watcher.Stop()
		})
	}

	// HTTP server
	var stopping atomic.Bool
	tasks := service.NewTaskService(mgr, service.DefaultRunner, slogLogger)
	httpHandler := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler: handler.Config{
			Tasks:     tasks,
			Uploads:   uploads,
			Pool:      mgr,
			PublicURL: cfg.Server.HTTP.PublicURL,
			Ready: func(context.Context) error {
				if stopping.Load() {
					return errors.New("server is shutting down")
				}
				return nil
			},
		},
		Keyring:            token.NewKeyring(cfg.Security.APIKeys),
		Metrics:            metrics,
		Logger:             slogLogger.With("component", "http"),
		CORSAllowedOrigins: cfg.Security.CORSAllowedOrigins,
		RateLimit:          cfg.Security.RateLimit,
	})

	opts := []httpserver.Option{
		httpserver.WithReadHeaderTimeout(cfg.Server.HTTP.ReadHeaderTimeout),
		httpserver.WithErrorLogger(slogLogger),
	}
	if cfg.Server.HTTP.TLSCertFile != "" {
		reloader, err := tlsroots.NewReloader(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			tlsroots.WithLogger(slogLogger))
		if err != nil {
			return fmt.Errorf("load TLS certificate: %w", err)
		}
		opts = append(opts, httpserver.WithTLSConfig(reloader.ServerConfig()))
		shutdownHandler.OnShutdown("tls reloader", func(context.Context) error {
			return reloader.Close()
		})
	}
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, httpHandler, opts...)
	shutdownHandler.OnShutdown("http server", func(ctx context.Context) error {
		stopping.Store(true)
		return httpServer.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", cfg.Server.HTTP.Addr,
			"tls", cfg.Server.HTTP.TLSCertFile != "",
			"base_url", cfg.BaseURL())
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	err = shutdownHandler.Wait()
	cancel()
	if err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file and environment.
func loadConfig(configFile string) (*confloader.Loader, *config.ServerConfig, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return loader, cfg, nil
}

// initLogger initializes the structured logger and makes it the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// initTransports registers the download backends by locator scheme.
func initTransports(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger) (*transport.Router, error) {
	router := transport.NewRouter()
	router.Register(transport.NewFileTransport("", nil), "file")

	httpOpts := []transport.HTTPOption{
		transport.WithTimeout(cfg.Transport.Timeout),
		transport.WithHTTPLogger(log.With("component", "transport")),
	}
	tlsCfg, err := tlsroots.ClientConfig(cfg.Transport.CAFile)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		httpOpts = append(httpOpts, transport.WithTLSConfig(tlsCfg))
	}
	router.Register(transport.NewHTTPTransport("", httpOpts...), "http", "https")

	s3t, err := transport.NewS3Transport(ctx, transport.S3Config{
		Region:       cfg.Transport.S3.Region,
		Endpoint:     cfg.Transport.S3.Endpoint,
		Anonymous:    cfg.Transport.S3.Anonymous,
		UsePathStyle: cfg.Transport.S3.UsePathStyle,
	}, log.With("component", "transport"))
	if err != nil {
		log.Warn("s3 transport disabled", "error", err)
	} else {
		router.Register(s3t, "s3")
	}

	log.Info("transports ready", "schemes", router.Schemes())
	return router, nil
}

// startConfigWatcher reloads the config file on change and applies the
// hot-reloadable fields.
func startConfigWatcher(loader *confloader.Loader, mgr *pool.Manager, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(loader.FilePath()); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(path string) {
		next := config.Default()
		if err := loader.Reload(next); err != nil {
			log.Error("config reload failed", "path", path, "error", err)
			return
		}
		if err := config.Verify(next); err != nil {
			log.Error("reloaded config rejected", "path", path, "error", err)
			return
		}
		logger.SetLevel(next.Log.Level)
		mgr.SetMaxIdleAge(next.Pool.MaxIdleAge)
		log.Info("config reloaded",
			"path", path,
			"log_level", next.Log.Level,
			"max_idle_age", next.Pool.MaxIdleAge)
	})
	watcher.StartAsync()
	return watcher, nil
}
