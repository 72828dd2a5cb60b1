// Package recording defines the voice note data model.
package recording

import (
	"path/filepath"
	"time"
)

// AudioFileName is the canonical audio payload name inside a recording folder.
// Its presence defines the recording's existence.
const AudioFileName = "audio.m4a"

// Entity is one voice note. The folder named ID under the store root is the
// source of truth for its existence; Transcription and AnalysisRaw are cached
// mirrors of the optional side-files and are cleared when those files vanish.
type Entity struct {
	// ID is the folder name. Immutable once created.
	ID string
	// Title is the display name; user renames and analysis suggestions may
	// change it.
	Title string
	// CreatedAt is set at folder creation time and never changes.
	CreatedAt time.Time
	// DurationSeconds is 0 until capture completes, then fixed.
	DurationSeconds float64
	// Transcription mirrors transcription.txt, nil when the file is absent
	// or unreadable.
	Transcription *string
	// AnalysisRaw mirrors analysis.json verbatim; it is the unparsed external
	// service response.
	AnalysisRaw *string
}

// AudioPath returns the audio payload location for the given store root.
// The path is derived, never stored.
func (e *Entity) AudioPath(root string) string {
	return filepath.Join(root, e.ID, AudioFileName)
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	c := *e
	if e.Transcription != nil {
		t := *e.Transcription
		c.Transcription = &t
	}
	if e.AnalysisRaw != nil {
		a := *e.AnalysisRaw
		c.AnalysisRaw = &a
	}
	return &c
}

// PlaceholderTitle returns the auto-generated title for a recording
// discovered without one.
func PlaceholderTitle(t time.Time) string {
	return "Recording " + t.Local().Format("2006-01-02 15:04")
}
