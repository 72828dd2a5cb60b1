//go:build linux

package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const watchMask = unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO | unix.IN_MOVED_FROM |
	unix.IN_CREATE | unix.IN_DELETE

// InotifyWatcher implements Watcher using Linux inotify. One inotify
// instance carries watches for the store root and each recording folder.
type InotifyWatcher struct {
	fd int

	mu      sync.Mutex
	dirs    map[int]string // watch descriptor -> directory
	watched map[string]bool
	stopped bool

	stopCh chan struct{}
}

// NewInotifyWatcher creates an inotify-based watcher.
func NewInotifyWatcher() (*InotifyWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &InotifyWatcher{
		fd:      fd,
		dirs:    make(map[int]string),
		watched: make(map[string]bool),
		stopCh:  make(chan struct{}),
	}, nil
}

// NewPlatformWatcher returns the watcher for this platform.
func NewPlatformWatcher() (Watcher, error) {
	return NewInotifyWatcher()
}

// Watch starts watching dir and begins the event read loop.
func (w *InotifyWatcher) Watch(ctx context.Context, dir string) (<-chan FileEvent, error) {
	if err := w.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan FileEvent, 100)
	go w.readEvents(ctx, events)
	return events, nil
}

// Add registers an additional directory watch; already-watched directories
// are a no-op.
func (w *InotifyWatcher) Add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.watched[dir] {
		return nil
	}

	wd, err := unix.InotifyAddWatch(w.fd, dir, watchMask)
	if err != nil {
		return err
	}
	w.dirs[wd] = dir
	w.watched[dir] = true
	return nil
}

// Stop stops the watcher and releases the inotify instance.
func (w *InotifyWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	return unix.Close(w.fd)
}

func (w *InotifyWatcher) readEvents(ctx context.Context, events chan<- FileEvent) {
	defer close(events)

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		n, err := unix.Read(w.fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return
		}
		if n < unix.SizeofInotifyEvent {
			continue
		}

		offset := 0
		for offset < n {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := int(event.Len)

			if nameLen > 0 {
				nameBytes := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
				name := strings.TrimRight(string(nameBytes), "\x00")

				w.mu.Lock()
				dir := w.dirs[int(event.Wd)]
				w.mu.Unlock()

				if dir != "" {
					ev := FileEvent{
						Path:      filepath.Join(dir, name),
						Timestamp: time.Now(),
					}
					// A full buffer must not wedge the loop past Stop or
					// cancellation. Dropping is safe: the next sync pass
					// converges regardless of missed events.
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					case <-w.stopCh:
						return
					default:
					}
				}
			}

			offset += unix.SizeofInotifyEvent + nameLen
		}
	}
}
