// Package store implements the filesystem layout of recording folders. The
// directory tree is the single source of truth for which recordings exist
// and what side-data they carry.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/voxvault/voxvault/internal/recording"
)

// Canonical file names inside a recording folder.
const (
	AudioFileName         = recording.AudioFileName
	TranscriptionFileName = "transcription.txt"
	AnalysisFileName      = "analysis.json"

	// StagingWAVName holds raw capture audio until it is transcoded into
	// the canonical payload.
	StagingWAVName = "capture.wav"
)

// ErrIO marks filesystem failures (unavailable, permission denied).
var ErrIO = errors.New("filesystem I/O failure")

// Folder is one enumerated recording folder.
type Folder struct {
	ID      string
	Path    string
	ModTime time.Time
}

// Store enumerates and mutates recording folders under a fixed root.
// It performs pure reads and writes with no caching.
type Store struct {
	root string
}

// New creates a Store rooted at root. The root is created lazily on first
// folder creation.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// FolderPath returns the canonical folder path for an id.
func (s *Store) FolderPath(id string) string {
	return filepath.Join(s.root, id)
}

// AudioPath returns the canonical audio payload path within a folder.
func (s *Store) AudioPath(folderPath string) string {
	return filepath.Join(folderPath, AudioFileName)
}

// ListRecordingFolders enumerates immediate subdirectories of the root whose
// name parses as a recording identifier and which contain the canonical audio
// payload. Entries that fail either test are skipped, not errors. A missing
// root yields an empty listing.
func (s *Store) ListRecordingFolders() ([]Folder, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioErr("list store root", err)
	}

	var folders []Folder
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := recording.ParseID(entry.Name())
		if err != nil {
			continue
		}
		folderPath := filepath.Join(s.root, entry.Name())
		if _, err := os.Stat(filepath.Join(folderPath, AudioFileName)); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		folders = append(folders, Folder{
			ID:      id,
			Path:    folderPath,
			ModTime: info.ModTime(),
		})
	}
	return folders, nil
}

// ReadTranscription returns the transcription side-file content. The second
// return is false on any failure: missing file, read error, or invalid UTF-8.
// Failures are not distinguished at this layer.
func (s *Store) ReadTranscription(folderPath string) (string, bool) {
	return readSideFile(filepath.Join(folderPath, TranscriptionFileName))
}

// ReadAnalysisRaw returns the raw analysis side-file content under the same
// contract as ReadTranscription.
func (s *Store) ReadAnalysisRaw(folderPath string) (string, bool) {
	return readSideFile(filepath.Join(folderPath, AnalysisFileName))
}

// WriteTranscription writes the transcription side-file.
func (s *Store) WriteTranscription(folderPath, text string) error {
	return writeSideFile(filepath.Join(folderPath, TranscriptionFileName), text)
}

// WriteAnalysisRaw writes the raw analysis side-file.
func (s *Store) WriteAnalysisRaw(folderPath, text string) error {
	return writeSideFile(filepath.Join(folderPath, AnalysisFileName), text)
}

// CreateFolder creates the folder for id, idempotently. An already-existing
// folder is success.
func (s *Store) CreateFolder(id string) (string, error) {
	folderPath := s.FolderPath(id)
	if err := os.MkdirAll(folderPath, 0755); err != nil {
		return "", ioErr(fmt.Sprintf("create folder %s", id), err)
	}
	return folderPath, nil
}

// DeleteFolder removes the folder and its contents. A missing folder is
// treated as already deleted.
func (s *Store) DeleteFolder(folderPath string) error {
	if err := os.RemoveAll(folderPath); err != nil {
		return ioErr(fmt.Sprintf("delete folder %s", folderPath), err)
	}
	return nil
}

func readSideFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

func writeSideFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return ioErr(fmt.Sprintf("write %s", filepath.Base(path)), err)
	}
	return nil
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrIO, err))
}
