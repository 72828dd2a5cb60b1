// Package reconcile converges the metadata index to the state of the
// filesystem store. The filesystem is authoritative for existence; the index
// is a cache to be corrected, never trusted.
package reconcile

import (
	"context"
	"path/filepath"

	"github.com/voxvault/voxvault/internal/audio/m4a"
	"github.com/voxvault/voxvault/internal/logging"
	"github.com/voxvault/voxvault/internal/recording"
	"github.com/voxvault/voxvault/internal/recording/index"
	"github.com/voxvault/voxvault/internal/recording/store"
)

// Summary reports what one reconciliation run changed.
type Summary struct {
	Inserted int
	Updated  int
	Removed  int
	Skipped  int
}

// Mutations returns the total number of index mutations.
func (s Summary) Mutations() int {
	return s.Inserted + s.Updated + s.Removed
}

func (s *Summary) add(o Summary) {
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.Removed += o.Removed
	s.Skipped += o.Skipped
}

// DurationProber reports a duration in seconds for an audio payload.
// Probing is best effort; ok=false leaves the duration at zero.
type DurationProber func(audioPath string) (seconds float64, ok bool)

// HeaderProber probes the M4A container header.
func HeaderProber(audioPath string) (float64, bool) {
	info, err := m4a.Probe(audioPath)
	if err != nil || info.Duration <= 0 {
		return 0, false
	}
	return info.Duration.Seconds(), true
}

// Option configures the Service.
type Option func(*Service)

// WithDurationProber replaces the audio duration prober.
func WithDurationProber(p DurationProber) Option {
	return func(s *Service) { s.probe = p }
}

// WithOnChange registers a callback fired after any run that mutated the
// index. This is the explicit refresh signal consumed by listing layers.
func WithOnChange(fn func(Summary)) Option {
	return func(s *Service) { s.onChange = fn }
}

// Service brings the index to a state consistent with the store.
// Runs are serialized; concurrent callers queue on the run lock.
type Service struct {
	store    *store.Store
	index    *index.Index
	log      logging.Logger
	probe    DurationProber
	onChange func(Summary)

	runMu chan struct{}
}

// New creates a reconciliation service.
func New(st *store.Store, ix *index.Index, log logging.Logger, opts ...Option) *Service {
	s := &Service{
		store: st,
		index: ix,
		log:   log,
		probe: HeaderProber,
		runMu: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one reconciliation, plus at most one immediate re-pass when
// the first pass mutated. Unconditional rerun-on-mutation would never settle
// if an external writer keeps touching files, so anything appearing after
// the re-pass waits for the next externally triggered run.
//
// A commit failure is reported but the in-memory index keeps its corrected
// state; the next commit attempt retries the flush.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	select {
	case s.runMu <- struct{}{}:
		defer func() { <-s.runMu }()
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}

	total, err := s.pass(ctx)
	if err != nil {
		return total, err
	}

	if total.Mutations() > 0 {
		again, err := s.pass(ctx)
		total.add(again)
		if err != nil {
			return total, err
		}
	}

	if total.Mutations() > 0 {
		s.log.Info("sync complete",
			logging.Int("inserted", total.Inserted),
			logging.Int("updated", total.Updated),
			logging.Int("removed", total.Removed),
		)
		if s.onChange != nil {
			s.onChange(total)
		}
	}
	return total, nil
}

// pass executes the single-pass algorithm: mirror every valid folder into
// the index, then drop orphans, then commit if anything changed.
func (s *Service) pass(ctx context.Context) (Summary, error) {
	var sum Summary

	folders, err := s.store.ListRecordingFolders()
	if err != nil {
		return sum, err
	}

	seen := make(map[string]bool, len(folders))
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		seen[folder.ID] = true

		if canonical := s.store.FolderPath(folder.ID); folder.Path != canonical {
			// Enumeration and derivation disagree on the path, which only
			// happens with case-mangled or linked directories. Skip rather
			// than index a folder we cannot re-derive.
			s.log.Error("skipping non-canonical folder path", nil,
				logging.String("id", folder.ID),
				logging.String("path", folder.Path),
			)
			sum.Skipped++
			continue
		}

		entity, ok := s.index.Find(folder.ID)
		if !ok {
			sum.Inserted++
			s.index.Upsert(s.discover(folder))
			continue
		}
		changed := s.mirrorSideFiles(entity, folder.Path)
		// Entries indexed before their header was readable carry a zero
		// duration; keep probing until the container parses.
		if entity.DurationSeconds == 0 {
			if seconds, ok := s.probe(s.store.AudioPath(folder.Path)); ok {
				entity.DurationSeconds = seconds
				changed = true
			}
		}
		if changed {
			sum.Updated++
			s.index.Upsert(entity)
		}
	}

	// Orphans: index entries whose folder no longer exists.
	for _, entity := range s.index.All() {
		if !seen[entity.ID] {
			s.index.Remove(entity.ID)
			sum.Removed++
			s.log.Debug("removed orphan entry", logging.String("id", entity.ID))
		}
	}

	if s.index.HasPendingChanges() {
		if err := s.index.Commit(ctx); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// discover constructs an index entry for a folder seen for the first time.
// Creation time comes from folder attributes; duration from the container
// header when it parses, zero otherwise.
func (s *Service) discover(folder store.Folder) *recording.Entity {
	entity := &recording.Entity{
		ID:        folder.ID,
		Title:     recording.PlaceholderTitle(folder.ModTime),
		CreatedAt: folder.ModTime,
	}
	if seconds, ok := s.probe(s.store.AudioPath(folder.Path)); ok {
		entity.DurationSeconds = seconds
	}
	if text, ok := s.store.ReadTranscription(folder.Path); ok {
		entity.Transcription = &text
	}
	if raw, ok := s.store.ReadAnalysisRaw(folder.Path); ok {
		entity.AnalysisRaw = &raw
	}
	s.log.Info("discovered recording",
		logging.String("id", folder.ID),
		logging.String("path", filepath.Base(folder.Path)),
	)
	return entity
}

// mirrorSideFiles updates the entity's cached side-file fields from disk.
// A missing file clears the field: the filesystem wins even though that
// loses the cached text.
func (s *Service) mirrorSideFiles(entity *recording.Entity, folderPath string) bool {
	changed := false

	text, ok := s.store.ReadTranscription(folderPath)
	if mirror(&entity.Transcription, text, ok) {
		changed = true
	}
	raw, ok := s.store.ReadAnalysisRaw(folderPath)
	if mirror(&entity.AnalysisRaw, raw, ok) {
		changed = true
	}
	return changed
}

// mirror converges *field to the on-disk value and reports whether it moved,
// covering both none<->some transitions and content changes.
func mirror(field **string, value string, present bool) bool {
	switch {
	case present && (*field == nil || **field != value):
		v := value
		*field = &v
		return true
	case !present && *field != nil:
		*field = nil
		return true
	}
	return false
}
