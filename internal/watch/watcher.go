package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hupe1980/azint/internal/logging"
)

// ErrAlreadyWatching is returned by Start on a running watcher.
var ErrAlreadyWatching = errors.New("watcher is already running")

// State is the lifecycle state of a Watcher.
type State int

// Watcher states.
const (
	Stopped State = iota
	Watching
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == Watching {
		return "watching"
	}

	return "stopped"
}

// Handler processes one candidate file.
type Handler func(ctx context.Context, path string)

// Options configures a Watcher.
type Options struct {
	// Dir is the directory to watch. Subdirectories are not watched.
	Dir string

	// Match selects candidate files. Defaults to every non-hidden file.
	Match func(path string) bool

	// Settle delays dispatch until a path saw no event for this long.
	// Zero dispatches on creation and ignores later writes, so a file that
	// is still being written is handed over incomplete.
	Settle time.Duration

	// Source subscribes to filesystem events. Defaults to fsnotify.
	Source SourceFactory
}

// Watcher hands newly created files of a directory to a Handler.
type Watcher struct {
	opts    Options
	handler Handler

	mu     sync.Mutex
	state  State
	source EventSource
	cancel context.CancelFunc
	done   chan struct{}
	settle *Debouncer
}

// New returns a stopped watcher.
func New(opts Options, handler Handler) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watch directory must not be empty")
	}

	if handler == nil {
		return nil, errors.New("handler must not be nil")
	}

	if opts.Settle < 0 {
		return nil, fmt.Errorf("invalid settle duration %s", opts.Settle)
	}

	if opts.Match == nil {
		opts.Match = func(path string) bool {
			return !strings.HasPrefix(filepath.Base(path), ".")
		}
	}

	if opts.Source == nil {
		opts.Source = NewFSNotifySource
	}

	return &Watcher{opts: opts, handler: handler}, nil
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

// Start subscribes to the directory and begins dispatching. The handler is
// called with a context derived from ctx.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == Watching {
		return ErrAlreadyWatching
	}

	src, err := w.opts.Source(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", w.opts.Dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)

	var settled chan string

	w.settle = nil

	if w.opts.Settle > 0 {
		settled = make(chan string)
		w.settle = NewDebouncer(w.opts.Settle, func(path string) {
			select {
			case settled <- path:
			case <-ctx.Done():
			}
		})
	}

	w.source = src
	w.cancel = cancel
	w.done = make(chan struct{})
	w.state = Watching

	go w.loop(ctx, src, w.settle, settled, w.done)

	logging.FromContext(ctx).Info("watching directory",
		slog.String("dir", w.opts.Dir),
		slog.Duration("settle", w.opts.Settle),
	)

	return nil
}

// Stop unsubscribes, drops pending settle timers and waits until the
// consumer has exited, including a handler call in progress. It is a no-op
// on a stopped watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Watching {
		return nil
	}

	w.cancel()

	if w.settle != nil {
		w.settle.Stop()
	}

	err := w.source.Close()

	<-w.done

	w.state = Stopped
	w.source = nil

	if err != nil {
		return fmt.Errorf("closing event source: %w", err)
	}

	return nil
}

// Run starts the watcher, blocks until ctx is cancelled and stops it.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	logging.FromContext(ctx).Info("shutting down watcher")

	return w.Stop()
}

// SignalContext returns a context that is cancelled when the process
// receives SIGINT or SIGTERM.
func SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func (w *Watcher) loop(ctx context.Context, src EventSource, settle *Debouncer, settled <-chan string, done chan<- struct{}) {
	defer close(done)

	logger := logging.FromContext(ctx)
	events, errs := src.Events(), src.Errors()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				logger.Warn("event source closed")
				return
			}

			if !w.opts.Match(ev.Path) {
				continue
			}

			if settle != nil {
				settle.Trigger(ev.Path)
				continue
			}

			if ev.Op == Create {
				w.dispatch(ctx, ev.Path)
			}

		case path := <-settled:
			w.dispatch(ctx, path)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("handler panicked",
				slog.String("path", path),
				slog.Any("error", r),
			)
		}
	}()

	w.handler(ctx, path)
}
