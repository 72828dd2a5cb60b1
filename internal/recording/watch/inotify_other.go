//go:build !linux

package watch

import "errors"

// ErrUnsupported is returned on platforms without a native watcher.
var ErrUnsupported = errors.New("watch mode requires linux")

// NewPlatformWatcher returns the watcher for this platform.
func NewPlatformWatcher() (Watcher, error) {
	return nil, ErrUnsupported
}
