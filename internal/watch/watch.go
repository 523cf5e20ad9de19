// Package watch re-runs work when an input file changes on disk.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change seen on a path.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Event is one change notification.
type Event struct {
	Path string
	Op   Op
}

// Watcher delivers fsnotify events as Events.
type Watcher struct {
	w   *fsnotify.Watcher
	evC chan Event
	erC chan error

	// done is closed by Close so a loop blocked on a full evC can exit.
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a watcher with nothing added.
func New() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &Watcher{
		w:    w,
		evC:  make(chan Event, 128),
		erC:  make(chan error, 1),
		done: make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

func (fw *Watcher) loop() {
	defer close(fw.evC)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			select {
			case fw.evC <- Event{Path: ev.Name, Op: convertOp(ev.Op)}:
			case <-fw.done:
				return
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			select {
			case fw.erC <- err:
			default:
			}
		case <-fw.done:
			return
		}
	}
}

func convertOp(in fsnotify.Op) Op {
	var op Op
	if in.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if in.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if in.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if in.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if in.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

func (fw *Watcher) Events() <-chan Event     { return fw.evC }
func (fw *Watcher) Errors() <-chan error     { return fw.erC }
func (fw *Watcher) Add(name string) error    { return fw.w.Add(name) }
func (fw *Watcher) Remove(name string) error { return fw.w.Remove(name) }

// Close stops the watcher. Events is closed once the loop has exited.
func (fw *Watcher) Close() error {
	fw.closeOnce.Do(func() { close(fw.done) })
	return fw.w.Close()
}

// Logger is the subset of *cli.Logger used by File.
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

// DefaultSettle is how long File waits for a burst of events to end.
const DefaultSettle = 100 * time.Millisecond

// File calls fn whenever path is created or written, until ctx is done.
// Editors often replace a file instead of writing it in place, so the
// parent directory is watched. Events arriving within settle of each other
// cause a single call. Errors from fn are logged and do not stop watching.
func File(ctx context.Context, path string, settle time.Duration, log Logger, fn func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	fw, err := New()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Path) != abs || ev.Op&(OpCreate|OpWrite|OpRename) == 0 {
				continue
			}
			timer.Reset(settle)
		case <-timer.C:
			log.Info("%s changed", path)
			if err := fn(); err != nil {
				log.Warn("%v", err)
			}
		case err := <-fw.Errors():
			log.Warn("watch %s: %v", path, err)
		}
	}
}
