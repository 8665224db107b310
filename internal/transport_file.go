package internal

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/clock"
	"github.com/juju/errors"
)

// FileTransport turns writes to the daemon's backup file into stream
// events. It is the fallback when the daemon's REST stream is not exposed.
// A rename onto the file shows up as a create and counts as a change.
type FileTransport struct {
	Path       string
	Clock      clock.Clock
	Logger     Logger
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func NewFileTransport(path string, clk clock.Clock, l Logger) *FileTransport {
	if clk == nil {
		clk = clock.WallClock
	}
	return &FileTransport{Path: path, Clock: clk, Logger: childLogger(l, "transport")}
}

// Subscribe starts watching the backup file's directory. The directory
// may not exist yet on a fresh wallet; the watch is retried with backoff
// and each failed attempt is reported as an error event.
func (t *FileTransport) Subscribe(ctx context.Context, eventName string) (<-chan Event, error) {
	if eventName != SubscribeChannelBackups {
		return nil, errors.NotFoundf("stream %q", eventName)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Annotate(err, "create file watcher")
	}
	ch := make(chan Event, 16)
	go t.run(ctx, w, ch)
	return ch, nil
}

// watch adds the backup directory to w, retrying until it exists. It
// reports whether the watch was established before ctx ended, and how
// many attempts failed on the way.
func (t *FileTransport) watch(ctx context.Context, w *fsnotify.Watcher, session string, ch chan<- Event) (bool, int) {
	dir := filepath.Dir(t.Path)
	backoff := streamBackoff(t.MinBackoff, t.MaxBackoff)
	attempt := 0
	for {
		err := w.Add(dir)
		if err == nil {
			return true, attempt
		}
		attempt++
		if !send(ctx, ch, Event{Kind: EventError, Session: session, Err: errors.WithType(errors.Annotatef(err, "watch %s", dir), ErrStreamFault)}) {
			return false, attempt
		}
		delay := backoff(0, attempt)
		t.Logger.Debugf("retrying watch on %s in %s", dir, delay)
		select {
		case <-ctx.Done():
			return false, attempt
		case <-t.Clock.After(delay):
		}
	}
}

func (t *FileTransport) run(ctx context.Context, w *fsnotify.Watcher, ch chan<- Event) {
	defer close(ch)
	defer w.Close()
	session := GenerateUUID()
	target := filepath.Clean(t.Path)

	ok, retries := t.watch(ctx, w, session, ch)
	if !ok {
		sendFinal(ch, Event{Kind: EventStatus, Session: session, Status: "closed"})
		return
	}
	t.Logger.Infof("watching %s for channel backup changes", target)
	if !send(ctx, ch, Event{Kind: EventStatus, Session: session, Status: "watching"}) {
		return
	}
	// The file may have been written while the directory was missing.
	if retries > 0 {
		if _, err := os.Stat(target); err == nil {
			if !send(ctx, ch, Event{Kind: EventData, Session: session}) {
				return
			}
		}
	}

	errs := w.Errors
	for {
		select {
		case <-ctx.Done():
			sendFinal(ch, Event{Kind: EventStatus, Session: session, Status: "closed"})
			return
		case ev, ok := <-w.Events:
			if !ok {
				sendFinal(ch, Event{Kind: EventStatus, Session: session, Status: "watcher closed"})
				return
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !send(ctx, ch, Event{Kind: EventData, Session: session}) {
				return
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if !send(ctx, ch, Event{Kind: EventError, Session: session, Err: errors.WithType(err, ErrStreamFault)}) {
				return
			}
		}
	}
}
