// Package playback owns decode and playback of one audio file at a time:
// Idle -> Prepared -> Playing <-> Paused -> Idle, with stop reachable from
// every state and natural end-of-file detected by the engine itself.
package playback

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/voxvault/voxvault/internal/audio/session"
	"github.com/voxvault/voxvault/internal/logging"
)

// Errors surfaced to callers as typed results.
var (
	ErrFileNotFound = errors.New("audio file not found")
	ErrDecode       = errors.New("audio file cannot be decoded")
)

const (
	progressInterval = 100 * time.Millisecond // ~10 Hz
	endEpsilon       = 0.05                   // seconds short of duration that counts as EOF
)

// State is the playback engine state.
type State int

const (
	StateIdle State = iota
	StatePrepared
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePrepared:
		return "prepared"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Player is one decoded file ready for playback. Stop resets the position to
// zero but keeps the decoder usable for fast replay.
type Player interface {
	Duration() float64
	Play() error
	Pause() error
	Stop() error
	Seek(seconds float64) error
	Position() float64
	Close() error
}

// Opener decodes an audio file into a Player.
type Opener interface {
	Open(path string) (Player, error)
}

// EventKind discriminates engine events.
type EventKind int

const (
	// EventState reports a state transition.
	EventState EventKind = iota
	// EventProgress reports the current playback position (~10 Hz).
	EventProgress
)

// Event is emitted on the engine's event channel.
type Event struct {
	Kind    EventKind
	State   State
	Seconds float64
}

// Engine is the playback state machine.
type Engine struct {
	opener Opener
	guard  *session.Guard
	log    logging.Logger
	events chan Event

	mu     sync.Mutex
	state  State
	gen    int
	path   string
	player Player
}

// New creates an idle playback engine and registers it with the session guard.
func New(opener Opener, guard *session.Guard, log logging.Logger) *Engine {
	e := &Engine{
		opener: opener,
		guard:  guard,
		log:    log,
		events: make(chan Event, 64),
	}
	guard.RegisterStop(session.OwnerPlayback, func() { e.Stop() })
	return e
}

// Events returns the engine event channel.
func (e *Engine) Events() <-chan Event { return e.events }

// State returns the current engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentTime returns the playback position in seconds.
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player == nil {
		return 0
	}
	return e.player.Position()
}

// Prepare opens path for decode without starting playback and returns the
// duration in seconds. An already-prepared player for the same path is
// reused transparently.
func (e *Engine) Prepare(path string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prepareLocked(path)
}

func (e *Engine) prepareLocked(path string) (float64, error) {
	if e.player != nil && e.path == path {
		if e.state == StateIdle {
			e.state = StatePrepared
		}
		return e.player.Duration(), nil
	}

	if e.player != nil {
		e.player.Close()
		e.player = nil
		e.path = ""
	}

	if _, err := os.Stat(path); err != nil {
		e.state = StateIdle
		return 0, fmt.Errorf("prepare %s: %w", path, errors.Join(ErrFileNotFound, err))
	}

	player, err := e.opener.Open(path)
	if err != nil {
		e.state = StateIdle
		return 0, fmt.Errorf("prepare %s: %w", path, errors.Join(ErrDecode, err))
	}

	e.player = player
	e.path = path
	e.state = StatePrepared
	return player.Duration(), nil
}

// Play starts or resumes playback of path. A differently prepared player is
// discarded first. The audio session is acquired, which stops any active
// capture before playback begins.
func (e *Engine) Play(path string) error {
	e.guard.Acquire(session.OwnerPlayback)

	e.mu.Lock()
	if e.player == nil || e.path != path {
		if _, err := e.prepareLocked(path); err != nil {
			e.mu.Unlock()
			e.guard.Release(session.OwnerPlayback)
			return err
		}
	}

	if err := e.player.Play(); err != nil {
		e.mu.Unlock()
		e.guard.Release(session.OwnerPlayback)
		return fmt.Errorf("start playback: %w", errors.Join(ErrDecode, err))
	}

	e.state = StatePlaying
	e.gen++
	gen := e.gen
	player := e.player
	e.mu.Unlock()

	go e.sampleProgress(gen, player)

	e.log.Info("playback started", logging.String("path", path))
	e.emit(Event{Kind: EventState, State: StatePlaying})
	return nil
}

// Pause halts playback but retains position and resources.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return
	}
	e.player.Pause()
	e.state = StatePaused
	e.gen++
	e.mu.Unlock()

	e.emit(Event{Kind: EventState, State: StatePaused})
}

// Stop returns to Idle from any state and resets the position to zero. The
// decoder is retained for fast replay of the same path.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return
	}
	if e.player != nil {
		e.player.Stop()
	}
	e.state = StateIdle
	e.gen++
	e.mu.Unlock()

	e.guard.Release(session.OwnerPlayback)
	e.emit(Event{Kind: EventState, State: StateIdle})
}

// Seek moves the position, clamped into [0, duration].
func (e *Engine) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player == nil {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if d := e.player.Duration(); seconds > d {
		seconds = d
	}
	e.player.Seek(seconds)
}

// sampleProgress reports the position at ~10 Hz and performs the engine's
// own end-of-file stop: no external polling is needed to detect it.
func (e *Engine) sampleProgress(gen int, player Player) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for range ticker.C {
		e.mu.Lock()
		alive := e.gen == gen && e.state == StatePlaying
		e.mu.Unlock()
		if !alive {
			return
		}

		pos := player.Position()
		e.emit(Event{Kind: EventProgress, State: StatePlaying, Seconds: pos})

		if pos >= player.Duration()-endEpsilon {
			e.finishPlayback(gen)
			return
		}
	}
}

// finishPlayback handles natural end-of-file: back to Idle, position zero.
func (e *Engine) finishPlayback(gen int) {
	e.mu.Lock()
	if e.gen != gen || e.state != StatePlaying {
		e.mu.Unlock()
		return
	}
	e.player.Stop()
	e.state = StateIdle
	e.gen++
	e.mu.Unlock()

	e.guard.Release(session.OwnerPlayback)
	e.log.Debug("playback finished", logging.String("path", e.path))
	e.emit(Event{Kind: EventProgress, State: StateIdle, Seconds: 0})
	e.emit(Event{Kind: EventState, State: StateIdle})
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}
