// Package pidfile tracks the watch daemon's process id so a later
// invocation can stop it or detect a stale run.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Common errors.
var (
	ErrNoPIDFile  = errors.New("no PID file found")
	ErrInvalidPID = errors.New("invalid PID in file")
)

const fileName = "watch.pid"

// File manages the PID file inside a store's marker directory.
type File struct {
	dir string
}

// New creates a File rooted at the marker directory (e.g. <root>/.voxvault).
func New(markerDir string) *File {
	return &File{dir: markerDir}
}

// Path returns the PID file path.
func (f *File) Path() string {
	return filepath.Join(f.dir, fileName)
}

// Write records pid, creating the marker directory if needed.
func (f *File) Write(pid int) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	content := strconv.Itoa(pid) + "\n"
	if err := os.WriteFile(f.Path(), []byte(content), 0644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded pid. ErrNoPIDFile when absent, ErrInvalidPID
// when unparseable.
func (f *File) Read() (int, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoPIDFile
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, ErrInvalidPID
	}
	return pid, nil
}

// Remove deletes the PID file; an absent file is success.
func (f *File) Remove() error {
	if err := os.Remove(f.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the recorded process is alive, using signal 0.
// No PID file means not running; a stale file reports (false, pid, nil).
func (f *File) IsRunning() (bool, int, error) {
	pid, err := f.Read()
	if err != nil {
		if errors.Is(err, ErrNoPIDFile) {
			return false, 0, nil
		}
		return false, 0, err
	}

	err = syscall.Kill(pid, 0)
	if err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return false, pid, nil
		}
		if errors.Is(err, syscall.EPERM) {
			// Exists but owned elsewhere.
			return true, pid, nil
		}
		return false, pid, fmt.Errorf("check process: %w", err)
	}
	return true, pid, nil
}

// CleanStale removes the PID file when its process is gone. Reports whether
// a stale file was removed.
func (f *File) CleanStale() (bool, error) {
	running, pid, err := f.IsRunning()
	if err != nil {
		return false, err
	}
	if running || pid == 0 {
		return false, nil
	}
	if _, err := os.Stat(f.Path()); err != nil {
		return false, nil
	}
	if err := f.Remove(); err != nil {
		return false, err
	}
	return true, nil
}
