package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/constants"
	"github.com/taxrates/taxrates-api/internal/store"
)

// reloadDelay coalesces bursts of file events into one reload.
const reloadDelay = 250 * time.Millisecond

// Holder publishes the current catalog. Readers call Current and keep the
// returned snapshot for the duration of a request.
type Holder struct {
	store    store.Store
	logger   *zap.Logger
	current  atomic.Pointer[Catalog]
	gen      atomic.Uint64
	onReload func(c *Catalog, err error)
}

// HolderOption customizes a Holder.
type HolderOption func(*Holder)

// WithReloadHook registers a callback run after every reload attempt.
func WithReloadHook(fn func(c *Catalog, err error)) HolderOption {
	return func(h *Holder) {
		h.onReload = fn
	}
}

// NewHolder creates an empty holder reading from s. Call Reload before use.
func NewHolder(s store.Store, logger *zap.Logger, opts ...HolderOption) *Holder {
	h := &Holder{store: s, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	h.current.Store(New(nil, nil))
	return h
}

// NewStaticHolder publishes a fixed catalog, for tests and tools.
func NewStaticHolder(c *Catalog) *Holder {
	h := &Holder{logger: zap.NewNop()}
	h.current.Store(c)
	return h
}

// Current returns the published snapshot.
func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

// Reload loads a new snapshot and publishes it. On failure the previous
// snapshot stays current.
func (h *Holder) Reload(ctx context.Context) (*Catalog, error) {
	if h.store == nil {
		return h.Current(), nil
	}
	c, err := Load(ctx, h.store)
	if err != nil {
		h.logger.Error("Catalog reload failed, keeping previous generation",
			zap.Uint64("generation", h.Current().Generation()),
			zap.Error(err))
		if h.onReload != nil {
			h.onReload(nil, err)
		}
		return nil, err
	}
	c.generation = h.gen.Add(1)
	h.current.Store(c)

	h.logger.Info("Catalog loaded",
		zap.Int("states", c.Len()),
		zap.Uint64("generation", c.generation))
	if h.onReload != nil {
		h.onReload(c, nil)
	}
	return c, nil
}

// Watch reloads the catalog whenever a file under dir changes. It blocks
// until ctx is cancelled.
func (h *Holder) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	zipDir := filepath.Join(dir, filepath.FromSlash(constants.ZipRatesPrefix))
	if info, err := os.Stat(zipDir); err == nil && info.IsDir() {
		if err := watcher.Add(zipDir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", zipDir)
		}
	}
	h.logger.Info("Watching committed data", zap.String("dir", dir))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			h.logger.Debug("Data file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			_, _ = h.Reload(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

// relevant filters out temp files written by the filesystem store and
// events that do not change content.
func relevant(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if filepath.Ext(base) != ".json" || base[0] == '.' {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
