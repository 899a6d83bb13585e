package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of filesystem change an Event reports.
type Op uint8

// Event kinds.
const (
	Create Op = 1 << iota
	Write
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case Create:
		return "create"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Event is a change to a file in the watched directory.
type Event struct {
	Path string
	Op   Op
}

// EventSource is a stream of filesystem events. Close unsubscribes; it must
// be safe to call more than once.
type EventSource interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// SourceFactory subscribes to the events of dir.
type SourceFactory func(dir string) (EventSource, error)

// FSNotifySource is an EventSource backed by fsnotify. It watches a single
// directory, not its subdirectories, and reports create and write events
// on regular files only.
type FSNotifySource struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}

	once sync.Once
	wg   sync.WaitGroup
}

// NewFSNotifySource starts watching dir.
func NewFSNotifySource(dir string) (EventSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching directory %q: %w", dir, err)
	}

	s := &FSNotifySource{
		watcher: w,
		events:  make(chan Event),
		errors:  make(chan error),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)

	go s.forward()

	return s, nil
}

// Events implements EventSource.
func (s *FSNotifySource) Events() <-chan Event { return s.events }

// Errors implements EventSource.
func (s *FSNotifySource) Errors() <-chan error { return s.errors }

// Close stops the underlying watcher and waits for the forwarding goroutine.
func (s *FSNotifySource) Close() error {
	var err error

	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()
	})

	return err
}

func (s *FSNotifySource) forward() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			e, relevant := translate(ev)
			if !relevant {
				continue
			}

			select {
			case s.events <- e:
			case <-s.done:
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}

			select {
			case s.errors <- err:
			case <-s.done:
				return
			}
		}
	}
}

// translate maps an fsnotify event to an Event. Removals, renames away,
// chmods and anything but regular files are dropped.
func translate(ev fsnotify.Event) (Event, bool) {
	var op Op

	switch {
	case ev.Has(fsnotify.Create):
		op = Create
	case ev.Has(fsnotify.Write):
		op = Write
	default:
		return Event{}, false
	}

	info, err := os.Stat(ev.Name)
	if err != nil || !info.Mode().IsRegular() {
		return Event{}, false
	}

	return Event{Path: filepath.Clean(ev.Name), Op: op}, true
}
