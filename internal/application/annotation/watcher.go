package annotation

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
)

// RuleReloader is what a Watcher drives when rule files change.
type RuleReloader interface {
	ReloadBase(ctx context.Context) error
	Invalidate(project string) error
	InvalidateAll()
}

const defaultDebounce = 250 * time.Millisecond

// Watcher invalidates cached parsers when files in the rules directory
// change.  Base document changes rebuild the base parser and drop every
// project; overlay changes drop only their project.
type Watcher struct {
	dir      string
	files    RuleFiles
	target   RuleReloader
	debounce time.Duration
	logger   logging.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher returns a Watcher over dir.  A non-positive debounce selects the
// default of 250ms.
func NewWatcher(dir string, files RuleFiles, target RuleReloader, debounce time.Duration, logger logging.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Watcher{
		dir:      dir,
		files:    files.withDefaults(),
		target:   target,
		debounce: debounce,
		logger:   logger.Named("watcher"),
		pending:  make(map[string]*time.Timer),
	}
}

// Run watches until ctx is done.  It returns an error only if the watch
// cannot be established.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watching rules", logging.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx, ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("rules watcher error", logging.Err(err))
		}
	}
}

// schedule coalesces bursts of events on one file into a single apply.
func (w *Watcher) schedule(ctx context.Context, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[name]; ok {
		t.Stop()
	}
	w.pending[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, name)
		w.mu.Unlock()
		if ctx.Err() == nil {
			w.apply(ctx, name)
		}
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, t := range w.pending {
		t.Stop()
		delete(w.pending, name)
	}
}

// apply acts on one changed file.
func (w *Watcher) apply(ctx context.Context, name string) {
	project, base, ok := classifyRuleFile(name, w.files)
	if !ok {
		return
	}
	if base {
		w.logger.Info("base rules changed", logging.String("file", name))
		if err := w.target.ReloadBase(ctx); err != nil {
			w.logger.Error("base rules reload failed; keeping previous parser", logging.Err(err))
		}
		w.target.InvalidateAll()
		return
	}
	if err := w.target.Invalidate(project); err != nil {
		w.logger.Warn("ignoring overlay change", logging.String("file", name), logging.Err(err))
	}
}
