// Package capture owns the microphone session: a state machine that writes
// one recording folder per capture and samples duration and input level
// while recording.
package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/voxvault/voxvault/internal/audio/encode"
	"github.com/voxvault/voxvault/internal/audio/session"
	"github.com/voxvault/voxvault/internal/logging"
	"github.com/voxvault/voxvault/internal/recording"
	"github.com/voxvault/voxvault/internal/recording/store"
)

// Errors surfaced to callers as typed results.
var (
	// ErrSessionUnavailable means the platform audio input could not be
	// configured (busy or denied).
	ErrSessionUnavailable = errors.New("audio session unavailable")
	// ErrIO means the output file could not be opened or written.
	ErrIO = errors.New("capture output I/O failure")
)

// Fixed capture profile.
const (
	SampleRate = 44100
	Channels   = 1
	BitDepth   = 16

	durationInterval = 100 * time.Millisecond // ~10 Hz
	levelInterval    = 50 * time.Millisecond  // ~20 Hz
)

// State is the capture engine state.
type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// Device opens platform audio input streams.
type Device interface {
	Open(sampleRate, channels int) (Stream, error)
}

// Stream delivers int16 PCM frames. Read blocks until frames are available
// and fails once the stream is closed or the hardware drops the session.
type Stream interface {
	Read() ([]int16, error)
	Close() error
}

// EventKind discriminates engine events.
type EventKind int

const (
	// EventState reports a state transition. Err is set when the
	// transition was forced by a hardware interruption.
	EventState EventKind = iota
	// EventDuration reports elapsed capture seconds (~10 Hz).
	EventDuration
	// EventLevel reports the normalized input level in [0, 1] (~20 Hz).
	EventLevel
)

// Event is emitted on the engine's event channel. Samplers never mutate
// engine state; they publish events that the owning goroutine consumes.
type Event struct {
	Kind    EventKind
	State   State
	Seconds float64
	Level   float64
	Err     error
}

// Handle identifies an in-flight capture.
type Handle struct {
	ID         string
	FolderPath string
}

// Engine is the capture state machine: Idle -> Recording -> Idle.
type Engine struct {
	store     *store.Store
	device    Device
	transcode encode.Transcoder
	guard     *session.Guard
	log       logging.Logger

	events chan Event

	mu      sync.Mutex
	state   State
	gen     int
	current *activeCapture
}

type activeCapture struct {
	id        string
	dir       string
	startedAt time.Time

	stream   Stream
	wavFile  *os.File
	encoder  *wav.Encoder
	pumpDone chan struct{}

	frameMu sync.Mutex
	samples int64
	level   float64
}

// New creates an idle capture engine and registers it with the session guard.
func New(st *store.Store, dev Device, tr encode.Transcoder, guard *session.Guard, log logging.Logger) *Engine {
	e := &Engine{
		store:     st,
		device:    dev,
		transcode: tr,
		guard:     guard,
		log:       log,
		events:    make(chan Event, 64),
	}
	guard.RegisterStop(session.OwnerCapture, func() { e.Stop() })
	return e
}

// Events returns the engine event channel. Events are dropped, not blocked
// on, when the consumer lags.
func (e *Engine) Events() <-chan Event { return e.events }

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start begins a new capture. An in-flight capture is stopped first; there
// is no silent double-start. The audio session is acquired, which stops any
// active playback.
func (e *Engine) Start(ctx context.Context) (*Handle, error) {
	if e.State() == StateRecording {
		e.Stop()
	}

	e.guard.Acquire(session.OwnerCapture)

	id := recording.NewID()
	dir, err := e.store.CreateFolder(id)
	if err != nil {
		e.guard.Release(session.OwnerCapture)
		return nil, fmt.Errorf("allocate recording folder: %w", errors.Join(ErrIO, err))
	}

	stream, err := e.device.Open(SampleRate, Channels)
	if err != nil {
		e.guard.Release(session.OwnerCapture)
		return nil, fmt.Errorf("open audio input: %w", errors.Join(ErrSessionUnavailable, err))
	}

	wavPath := filepath.Join(dir, store.StagingWAVName)
	wavFile, err := os.Create(wavPath)
	if err != nil {
		stream.Close()
		e.guard.Release(session.OwnerCapture)
		return nil, fmt.Errorf("open staging file: %w", errors.Join(ErrIO, err))
	}

	active := &activeCapture{
		id:        id,
		dir:       dir,
		startedAt: time.Now(),
		stream:    stream,
		wavFile:   wavFile,
		encoder:   wav.NewEncoder(wavFile, SampleRate, BitDepth, Channels, 1),
		pumpDone:  make(chan struct{}),
	}

	e.mu.Lock()
	e.state = StateRecording
	e.gen++
	gen := e.gen
	e.current = active
	e.mu.Unlock()

	go e.pump(gen, active)
	go e.sampleDuration(gen, active)
	go e.sampleLevel(gen, active)

	e.log.Info("capture started", logging.String("id", id))
	e.emit(Event{Kind: EventState, State: StateRecording})
	return &Handle{ID: id, FolderPath: dir}, nil
}

// Stop ends the current capture and returns the finished entity, or nil if
// no capture is active. Samplers are cancelled before Stop returns; a timer
// that already fired observes a stale generation and drops its event.
func (e *Engine) Stop() *recording.Entity {
	e.mu.Lock()
	if e.state != StateRecording {
		e.mu.Unlock()
		return nil
	}
	active := e.current
	e.state = StateIdle
	e.gen++
	e.current = nil
	e.mu.Unlock()

	// Closing the stream unblocks the pump, which then drains and exits.
	active.stream.Close()
	<-active.pumpDone
	e.finishFiles(active)

	entity := &recording.Entity{
		ID:              active.id,
		Title:           recording.PlaceholderTitle(active.startedAt),
		CreatedAt:       active.startedAt,
		DurationSeconds: active.elapsedSeconds(),
	}

	e.guard.Release(session.OwnerCapture)
	e.log.Info("capture stopped",
		logging.String("id", active.id),
		logging.Float64("seconds", entity.DurationSeconds),
	)
	e.emit(Event{Kind: EventState, State: StateIdle})
	return entity
}

// pump streams device frames into the staging WAV and tracks the input
// level. A read failure while still recording is a hardware interruption.
func (e *Engine) pump(gen int, active *activeCapture) {
	defer close(active.pumpDone)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		SourceBitDepth: BitDepth,
	}

	for {
		frames, err := active.stream.Read()
		if err != nil {
			e.interrupt(gen, err)
			return
		}
		if len(frames) == 0 {
			continue
		}

		buf.Data = buf.Data[:0]
		for _, f := range frames {
			buf.Data = append(buf.Data, int(f))
		}
		if err := active.encoder.Write(buf); err != nil {
			e.interrupt(gen, fmt.Errorf("write staging audio: %w", errors.Join(ErrIO, err)))
			return
		}

		active.frameMu.Lock()
		active.samples += int64(len(frames))
		active.level = NormalizeLevel(decibels(frames))
		active.frameMu.Unlock()
	}
}

func (e *Engine) sampleDuration(gen int, active *activeCapture) {
	ticker := time.NewTicker(durationInterval)
	defer ticker.Stop()
	for range ticker.C {
		if !e.generationAlive(gen) {
			return
		}
		e.emit(Event{Kind: EventDuration, State: StateRecording, Seconds: active.elapsedSeconds()})
	}
}

func (e *Engine) sampleLevel(gen int, active *activeCapture) {
	ticker := time.NewTicker(levelInterval)
	defer ticker.Stop()
	for range ticker.C {
		if !e.generationAlive(gen) {
			return
		}
		active.frameMu.Lock()
		level := active.level
		active.frameMu.Unlock()
		e.emit(Event{Kind: EventLevel, State: StateRecording, Level: level})
	}
}

// interrupt handles an unexpected capture failure: the engine transitions
// back to Idle and cancels samplers without an explicit Stop call.
func (e *Engine) interrupt(gen int, cause error) {
	e.mu.Lock()
	if e.gen != gen || e.state != StateRecording {
		// Stop already ran; the pump is exiting normally.
		e.mu.Unlock()
		return
	}
	active := e.current
	e.state = StateIdle
	e.gen++
	e.current = nil
	e.mu.Unlock()

	active.stream.Close()
	e.finalizeStaging(active)
	e.guard.Release(session.OwnerCapture)

	e.log.Error("capture interrupted", cause, logging.String("id", active.id))
	e.emit(Event{Kind: EventState, State: StateIdle, Err: cause})
}

// finishFiles finalizes the staging WAV and promotes it to the canonical
// audio payload. When transcoding fails the staging file is kept so the
// audio is not lost.
func (e *Engine) finishFiles(active *activeCapture) {
	e.finalizeStaging(active)

	wavPath := filepath.Join(active.dir, store.StagingWAVName)
	audioPath := filepath.Join(active.dir, store.AudioFileName)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := e.transcode.Transcode(ctx, wavPath, audioPath); err != nil {
		e.log.Error("transcode failed, keeping staging audio", err,
			logging.String("id", active.id))
		return
	}
	if err := os.Remove(wavPath); err != nil {
		e.log.Error("remove staging audio", err, logging.String("id", active.id))
	}
}

func (e *Engine) finalizeStaging(active *activeCapture) {
	if err := active.encoder.Close(); err != nil {
		e.log.Error("finalize staging audio", err, logging.String("id", active.id))
	}
	active.wavFile.Close()
}

func (e *Engine) generationAlive(gen int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen && e.state == StateRecording
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

func (a *activeCapture) elapsedSeconds() float64 {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	return float64(a.samples) / float64(SampleRate*Channels)
}

// NormalizeLevel maps device decibel readings into [0, 1] with the fixed
// affine mapping clamp((db+60)/60, 0, 1).
func NormalizeLevel(db float64) float64 {
	level := (db + 60) / 60
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}

// decibels computes the dBFS level of a frame buffer. Silence maps to -120,
// well below the normalization floor.
func decibels(frames []int16) float64 {
	if len(frames) == 0 {
		return -120
	}
	var sum float64
	for _, f := range frames {
		v := float64(f)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(frames)))
	if rms <= 0 {
		return -120
	}
	return 20 * math.Log10(rms/math.MaxInt16)
}
