// Package persist keeps library and settings state across restarts with two
// tiers: a trimmed copy written synchronously to a fast cache on every
// change, and the full state written asynchronously to a durable store.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/models"
)

// Blob names.
const (
	LibraryCacheKey    = "flipbook-library-cache"
	SettingsCacheKey   = "flipbook-settings-cache"
	LibraryDurableKey  = "library-storage"
	SettingsDurableKey = "settings-storage"
)

// Durable is the full-state tier.
type Durable interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
}

// Indexer is told about every durably written library snapshot.
type Indexer interface {
	SyncBooks(ctx context.Context, books []models.Book, logger *slog.Logger) error
}

// Source says which tier a load came from.
type Source string

// Load sources.
const (
	SourceDurable Source = "durable"
	SourceCache   Source = "cache"
	SourceEmpty   Source = "empty"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithCoverLimit sets the cover length at which the cache drops covers.
func WithCoverLimit(n int) Option {
	return func(g *Gateway) { g.coverLimit = n }
}

// Cache write bounds. A cache write runs under the library lock, so it gets
// a short deadline, and after a failure the cache is skipped for a while.
const (
	DefaultCacheTimeout  = 250 * time.Millisecond
	DefaultCacheCooldown = 30 * time.Second
)

// WithCacheTimeout bounds each cache write.
func WithCacheTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.cacheTimeout = d
		}
	}
}

// WithCacheCooldown sets how long cache writes are skipped after one fails.
func WithCacheCooldown(d time.Duration) Option {
	return func(g *Gateway) { g.cacheCooldown = max(d, 0) }
}

// WithIndexer installs a page indexer run after each durable library write.
func WithIndexer(ix Indexer) Option {
	return func(g *Gateway) { g.indexer = ix }
}

// Gateway is a library.Observer and a settings observer.
type Gateway struct {
	cache      Cache
	durable    Durable
	indexer    Indexer
	logger     *slog.Logger
	coverLimit int

	cacheTimeout  time.Duration
	cacheCooldown time.Duration
	cachePaused   atomic.Int64 // unix nanos until which cache writes are skipped

	mu           sync.Mutex
	nextLibrary  *models.Snapshot
	nextSettings *models.Settings
	wake         chan struct{}
	quit         chan struct{}
	done         chan struct{}
	closeOnce    sync.Once

	cacheWarned atomic.Bool
	writes      atomic.Int64
}

// New creates a gateway and starts its durable writer.
func New(cache Cache, durable Durable, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		cache:         cache,
		durable:       durable,
		logger:        logger,
		coverLimit:    DefaultCoverLimit,
		cacheTimeout:  DefaultCacheTimeout,
		cacheCooldown: DefaultCacheCooldown,
		wake:          make(chan struct{}, 1),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	go g.run()
	return g
}

var _ library.Observer = (*Gateway)(nil)

// LibraryChanged writes the trimmed snapshot to the cache and queues the
// full one for the durable tier. It never blocks on durable I/O.
func (g *Gateway) LibraryChanged(_ library.Change, snap models.Snapshot) {
	g.writeCache(LibraryCacheKey, Trim(snap, g.coverLimit))

	g.mu.Lock()
	g.nextLibrary = &snap
	g.mu.Unlock()
	g.signal()
}

// SettingsChanged persists settings to both tiers the same way.
func (g *Gateway) SettingsChanged(s models.Settings) {
	g.writeCache(SettingsCacheKey, s)

	g.mu.Lock()
	g.nextSettings = &s
	g.mu.Unlock()
	g.signal()
}

// LoadLibrary returns the durable snapshot, falling back to the cache copy
// (which has no page content) when the durable tier has nothing usable.
func (g *Gateway) LoadLibrary(ctx context.Context) (models.Snapshot, Source) {
	var snap models.Snapshot
	if g.loadDurable(ctx, LibraryDurableKey, &snap) {
		return snap, SourceDurable
	}
	snap = models.Snapshot{}
	if g.loadCache(ctx, LibraryCacheKey, &snap) {
		return snap, SourceCache
	}
	return models.Snapshot{}, SourceEmpty
}

// LoadSettings decodes stored settings over defaults, durable tier first.
func (g *Gateway) LoadSettings(ctx context.Context, defaults models.Settings) (models.Settings, Source) {
	s := defaults
	if g.loadDurable(ctx, SettingsDurableKey, &s) {
		return s, SourceDurable
	}
	s = defaults
	if g.loadCache(ctx, SettingsCacheKey, &s) {
		return s, SourceCache
	}
	return defaults, SourceEmpty
}

// Writes returns how many durable writes have completed.
func (g *Gateway) Writes() int64 { return g.writes.Load() }

// Close flushes any queued durable write and stops the writer. It returns
// ctx.Err() if the flush does not finish in time.
func (g *Gateway) Close(ctx context.Context) error {
	g.closeOnce.Do(func() { close(g.quit) })
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("persist: flush: %w", ctx.Err())
	}
}

func (g *Gateway) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *Gateway) run() {
	defer close(g.done)
	for {
		select {
		case <-g.wake:
			g.flush()
		case <-g.quit:
			g.flush()
			return
		}
	}
}

// flush writes the latest queued states. Intermediate snapshots superseded
// before the writer got to them are never written.
func (g *Gateway) flush() {
	g.mu.Lock()
	lib, set := g.nextLibrary, g.nextSettings
	g.nextLibrary, g.nextSettings = nil, nil
	g.mu.Unlock()

	ctx := context.Background()
	if lib != nil {
		if g.writeDurable(ctx, LibraryDurableKey, lib) && g.indexer != nil {
			if err := g.indexer.SyncBooks(ctx, lib.Books, g.logger); err != nil {
				g.logger.Error("page index sync failed", slog.String("error", err.Error()))
			}
		}
	}
	if set != nil {
		g.writeDurable(ctx, SettingsDurableKey, set)
	}
}

func (g *Gateway) writeDurable(ctx context.Context, key string, v any) bool {
	data, err := json.Marshal(v)
	if err == nil {
		err = g.durable.Put(ctx, key, data)
	}
	if err != nil {
		g.logger.Error("durable write failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	g.writes.Add(1)
	return true
}

// writeCache swallows quota errors. Any other failure pauses the cache for
// the cooldown and is logged once.
func (g *Gateway) writeCache(key string, v any) {
	if time.Now().UnixNano() < g.cachePaused.Load() {
		return
	}
	data, err := json.Marshal(v)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), g.cacheTimeout)
		err = g.cache.Set(ctx, key, data)
		cancel()
	}
	if err == nil || errors.Is(err, apperr.ErrQuotaExceeded) {
		return
	}
	g.cachePaused.Store(time.Now().Add(g.cacheCooldown).UnixNano())
	if g.cacheWarned.CompareAndSwap(false, true) {
		g.logger.Warn("cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (g *Gateway) loadDurable(ctx context.Context, key string, v any) bool {
	data, err := g.durable.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			g.logger.Error("durable load failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		g.logger.Error("durable blob corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

func (g *Gateway) loadCache(ctx context.Context, key string, v any) bool {
	data, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			g.logger.Warn("cache load failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		g.logger.Warn("cache blob corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}
