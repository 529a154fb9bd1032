// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/starford/flipshelf/internal/api"
	"github.com/starford/flipshelf/internal/blobstore"
	"github.com/starford/flipshelf/internal/gesture"
	"github.com/starford/flipshelf/internal/inbox"
	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/mcpserver"
	"github.com/starford/flipshelf/internal/narration"
	"github.com/starford/flipshelf/internal/parser"
	"github.com/starford/flipshelf/internal/persist"
	"github.com/starford/flipshelf/internal/reading"
	"github.com/starford/flipshelf/internal/retention"
	"github.com/starford/flipshelf/internal/settings"
	"github.com/starford/flipshelf/internal/sse"
	"github.com/starford/flipshelf/internal/storage"
	"github.com/starford/flipshelf/internal/upload"
)

const shutdownTimeout = 10 * time.Second

// core is the state shared by every command: the stores, hydrated from the
// persistence gateway, and the resources that must be released on exit.
type core struct {
	cfg     *Config
	logger  *slog.Logger
	lib     *library.Store
	prefs   *settings.Store
	db      *blobstore.DB
	gateway *persist.Gateway
	redis   *redis.Client
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		// Initialize structured JSON logger.
		app.logger = slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
		slog.SetDefault(app.logger)
	}
	return app, nil
}

// openCore opens both persistence tiers and loads the saved library and
// settings into fresh stores.
func openCore(ctx context.Context, cfg *Config, logger *slog.Logger) (*core, error) {
	if err := os.MkdirAll(cfg.Library.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := blobstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init blobstore: %w", err)
	}

	c := &core{cfg: cfg, logger: logger, db: db}

	var cache persist.Cache
	switch cfg.Cache.Driver {
	case CacheDriverRedis:
		client, err := persist.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if client == nil {
			db.Close()
			return nil, err
		}
		if err != nil {
			logger.Warn("redis cache unreachable, continuing", slog.String("error", err.Error()))
		}
		c.redis = client
		cache = persist.NewRedisCache(c.redis, "flipshelf:", cfg.Cache.MaxBytes)
	default:
		dir, err := storage.Open(cfg.CacheDir())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init cache dir: %w", err)
		}
		cache = persist.NewFileCache(dir, cfg.Cache.MaxBytes)
	}

	c.gateway = persist.New(cache, db, logger,
		persist.WithCoverLimit(cfg.Library.CoverCacheLimit),
		persist.WithIndexer(db),
	)

	c.lib = library.New()
	snap, src := c.gateway.LoadLibrary(ctx)
	c.lib.Hydrate(snap)

	c.prefs = settings.New()
	prefs, prefsSrc := c.gateway.LoadSettings(ctx, settings.Defaults())
	c.prefs.Hydrate(prefs)

	logger.Info("library loaded",
		slog.String("source", string(src)),
		slog.Int("books", len(snap.Books)),
		slog.Int("groups", len(snap.Groups)),
		slog.String("settings_source", string(prefsSrc)))

	// Only the durable tier carries page text.
	if src == persist.SourceDurable {
		if err := db.SyncBooks(ctx, snap.Books, logger); err != nil {
			logger.Warn("initial text index sync failed", slog.String("error", err.Error()))
		}
	}

	c.lib.Subscribe(c.gateway)
	c.prefs.Subscribe(c.gateway.SettingsChanged)
	return c, nil
}

// close drains the durable writer and releases connections.
func (c *core) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.gateway.Close(ctx); err != nil {
		c.logger.Error("persistence flush failed", slog.String("error", err.Error()))
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if err := c.db.Close(); err != nil {
		c.logger.Error("blobstore close failed", slog.String("error", err.Error()))
	}
}

func (c *core) pipeline(opts ...upload.Option) *upload.Pipeline {
	return upload.New(c.lib, parser.New(parser.DefaultCharsPerPage), c.logger, opts...)
}

func newNarration(cfg NarrationConfig, logger *slog.Logger) (*narration.Service, error) {
	var engines []narration.Engine
	if cfg.RemoteURL != "" {
		player, err := narration.NewCommandPlayer(cfg.PlayerCommand)
		if err != nil {
			return nil, err
		}
		engines = append(engines, narration.NewRemoteEngine(cfg.RemoteURL, nil, player))
	}
	if cfg.LocalCommand != "" {
		local, err := narration.NewCommandEngine(cfg.LocalCommand)
		if err != nil {
			return nil, err
		}
		engines = append(engines, local)
	}
	if len(engines) == 0 {
		logger.Info("no narration engine configured; read-aloud is unavailable")
	}
	return narration.NewService(logger, cfg.MaxChars, narration.Options{Voice: cfg.DefaultVoice}, engines...), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Library.DataDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := openCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	narr, err := newNarration(cfg.Narration, logger)
	if err != nil {
		return fmt.Errorf("init narration: %w", err)
	}

	// SSE broker.
	broker := sse.NewBroker(sse.WithSummaryThrottle(2 * time.Second))
	defer broker.Close()
	c.lib.Subscribe(broker)
	c.prefs.Subscribe(broker.SettingsChanged)

	sessions := reading.NewManager(c.lib, narr, c.prefs.Get)
	defer sessions.CloseAll()

	// Build API service and router.
	svc := &api.Service{
		Library:  c.lib,
		Gestures: gesture.NewResolver(c.lib, logger),
		Uploads: c.pipeline(upload.WithProgress(func(name string, index, total int) {
			broker.Publish(sse.Event{Type: "upload.progress", Data: map[string]any{
				"file": name, "index": index, "total": total,
			}})
		})),
		Sessions: sessions,
		Settings: c.prefs,
		Text:     c.db,
		Voices:   narr,
	}

	var limiter *api.RateLimiter
	if cfg.App.HTTP.RateLimitRPS > 0 {
		limiter = api.NewRateLimiter(cfg.App.HTTP.RateLimitRPS, cfg.App.HTTP.RateLimitBurst)
	}
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, limiter)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.db.List(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Retention.Enabled {
		job, err := retention.New(c.lib, cfg.Retention.Schedule, cfg.Retention.MaxAge, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return job.Run(gCtx)
		})
	}

	if cfg.Inbox.Enabled {
		watcher := inbox.New(cfg.InboxDir(), c.pipeline(), logger, inbox.WithCallback(func(sum upload.Summary) {
			broker.Publish(sse.Event{Type: "inbox.imported", Data: sum})
		}))
		g.Go(func() error {
			return watcher.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Unblock the inbox and retention loops after a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	c, err := openCore(ctx, app.config, app.logger)
	if err != nil {
		return err
	}
	defer c.close()

	srv := mcpserver.New(c.lib, c.pipeline(), c.db)
	app.logger.Info("MCP server starting on stdio")
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp serve: %w", err)
	}
	return nil
}

// RunImport adds the given files, and the files directly inside the given
// directories, to the library and returns the batch summary.
func RunImport(ctx context.Context, paths []string, opts ...Option) (upload.Summary, error) {
	app, err := newApplication(opts)
	if err != nil {
		return upload.Summary{}, err
	}

	files, err := collectFiles(paths)
	if err != nil {
		return upload.Summary{}, err
	}

	c, err := openCore(ctx, app.config, app.logger)
	if err != nil {
		return upload.Summary{}, err
	}
	defer c.close()

	p := c.pipeline(upload.WithProgress(func(name string, index, total int) {
		app.logger.Info("importing", slog.String("file", name), slog.Int("index", index), slog.Int("total", total))
	}))
	sum, err := p.Process(ctx, files)
	if err != nil {
		return sum, err
	}
	app.logger.Info("import finished",
		slog.Int("success", sum.Success),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed))
	return sum, nil
}

func collectFiles(paths []string) ([]upload.File, error) {
	var files []upload.File
	add := func(p string) error {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, upload.File{Name: filepath.Base(p), Data: data})
		return nil
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", p, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() {
				if err := add(filepath.Join(p, e.Name())); err != nil {
					return nil, err
				}
			}
		}
	}
	return files, nil
}
