package playback

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voxvault/voxvault/internal/audio/session"
	"github.com/voxvault/voxvault/internal/logging"
)

// fakePlayer advances its position in wall time while playing.
type fakePlayer struct {
	mu       sync.Mutex
	duration float64
	position float64
	playing  bool
	lastTick time.Time
	closed   bool
}

func (p *fakePlayer) advance() {
	if p.playing {
		now := time.Now()
		p.position += now.Sub(p.lastTick).Seconds()
		p.lastTick = now
		if p.position > p.duration {
			p.position = p.duration
		}
	}
}

func (p *fakePlayer) Duration() float64 {
	return p.duration
}

func (p *fakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.lastTick = time.Now()
	return nil
}

func (p *fakePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	p.playing = false
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.position = 0
	return nil
}

func (p *fakePlayer) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = seconds
	return nil
}

func (p *fakePlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advance()
	return p.position
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeOpener struct {
	mu       sync.Mutex
	duration float64
	err      error
	opens    int
	last     *fakePlayer
}

func (o *fakeOpener) Open(path string) (Player, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	o.opens++
	o.last = &fakePlayer{duration: o.duration}
	return o.last, nil
}

func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.m4a")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(t *testing.T, duration float64) (*Engine, *fakeOpener) {
	t.Helper()
	opener := &fakeOpener{duration: duration}
	e := New(opener, session.NewGuard(), logging.Nop{})
	return e, opener
}

func TestPrepare_ReturnsDuration(t *testing.T) {
	e, _ := newTestEngine(t, 30)
	path := writeAudioFile(t)

	d, err := e.Prepare(path)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if d != 30 {
		t.Errorf("expected duration 30, got %v", d)
	}
	if e.State() != StatePrepared {
		t.Errorf("expected prepared state, got %v", e.State())
	}
}

func TestPrepare_SamePathReusesPlayer(t *testing.T) {
	e, opener := newTestEngine(t, 30)
	path := writeAudioFile(t)

	if _, err := e.Prepare(path); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Prepare(path); err != nil {
		t.Fatal(err)
	}

	if opener.opens != 1 {
		t.Errorf("expected one open for repeated path, got %d", opener.opens)
	}
}

func TestPrepare_DifferentPathDiscardsPlayer(t *testing.T) {
	e, opener := newTestEngine(t, 30)
	first := writeAudioFile(t)
	second := writeAudioFile(t)

	if _, err := e.Prepare(first); err != nil {
		t.Fatal(err)
	}
	firstPlayer := opener.last
	if _, err := e.Prepare(second); err != nil {
		t.Fatal(err)
	}

	if !firstPlayer.closed {
		t.Error("expected first player closed when path changes")
	}
	if opener.opens != 2 {
		t.Errorf("expected two opens, got %d", opener.opens)
	}
}

func TestPrepare_MissingFile(t *testing.T) {
	e, _ := newTestEngine(t, 30)

	_, err := e.Prepare(filepath.Join(t.TempDir(), "missing.m4a"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got: %v", err)
	}
	if e.State() != StateIdle {
		t.Errorf("expected idle after failed prepare, got %v", e.State())
	}
}

func TestPrepare_UndecodableFile(t *testing.T) {
	e, opener := newTestEngine(t, 30)
	opener.err = errors.New("bad header")
	path := writeAudioFile(t)

	_, err := e.Prepare(path)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got: %v", err)
	}
}

func TestPlayPauseStop(t *testing.T) {
	e, opener := newTestEngine(t, 30)
	path := writeAudioFile(t)

	if err := e.Play(path); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if e.State() != StatePlaying {
		t.Fatalf("expected playing, got %v", e.State())
	}

	time.Sleep(30 * time.Millisecond)
	e.Pause()
	if e.State() != StatePaused {
		t.Fatalf("expected paused, got %v", e.State())
	}
	pausedAt := e.CurrentTime()
	if pausedAt <= 0 {
		t.Errorf("expected position to advance, got %v", pausedAt)
	}

	// Position holds while paused.
	time.Sleep(20 * time.Millisecond)
	if got := e.CurrentTime(); got != pausedAt {
		t.Errorf("position moved while paused: %v -> %v", pausedAt, got)
	}

	e.Stop()
	if e.State() != StateIdle {
		t.Fatalf("expected idle, got %v", e.State())
	}
	if got := e.CurrentTime(); got != 0 {
		t.Errorf("expected position reset on stop, got %v", got)
	}
	// The decoder is retained for replay.
	if opener.last.closed {
		t.Error("stop must not close the player")
	}
}

func TestPause_WhenNotPlayingIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, 30)
	e.Pause()
	if e.State() != StateIdle {
		t.Errorf("expected idle, got %v", e.State())
	}
}

func TestStop_WhenIdleIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, 30)
	e.Stop()

	select {
	case ev := <-e.Events():
		t.Errorf("unexpected event from idle stop: %+v", ev)
	default:
	}
}

func TestSeek_Clamps(t *testing.T) {
	e, opener := newTestEngine(t, 30)
	path := writeAudioFile(t)
	if _, err := e.Prepare(path); err != nil {
		t.Fatal(err)
	}

	e.Seek(-5)
	if got := opener.last.Position(); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}

	e.Seek(99)
	if got := opener.last.Position(); got != 30 {
		t.Errorf("expected clamp to duration, got %v", got)
	}

	e.Seek(12)
	if got := opener.last.Position(); got != 12 {
		t.Errorf("expected 12, got %v", got)
	}
}

func TestSeek_WithoutPlayerIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, 30)
	e.Seek(10) // must not panic
}

func TestNaturalEnd_ReturnsToIdleWithZeroProgress(t *testing.T) {
	// Short file so wall-clock playback reaches EOF quickly.
	e, _ := newTestEngine(t, 0.2)
	path := writeAudioFile(t)

	if err := e.Play(path); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	var sawZeroProgress bool
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-e.Events():
			if ev.Kind == EventProgress && ev.State == StateIdle && ev.Seconds == 0 {
				sawZeroProgress = true
			}
			if ev.Kind == EventState && ev.State == StateIdle {
				if !sawZeroProgress {
					t.Error("expected a zero-progress event before the idle transition")
				}
				if e.State() != StateIdle {
					t.Errorf("expected idle state, got %v", e.State())
				}
				return
			}
		case <-deadline:
			t.Fatal("playback never finished")
		}
	}
}

func TestGuard_PlaybackEvictedByCapture(t *testing.T) {
	guard := session.NewGuard()
	opener := &fakeOpener{duration: 30}
	e := New(opener, guard, logging.Nop{})
	path := writeAudioFile(t)

	if err := e.Play(path); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if guard.Holder() != session.OwnerPlayback {
		t.Fatalf("expected playback to hold the session, got %q", guard.Holder())
	}

	// A capture acquisition evicts playback through its registered stop hook.
	guard.Acquire(session.OwnerCapture)

	if e.State() != StateIdle {
		t.Errorf("expected playback stopped, got %v", e.State())
	}
	if guard.Holder() != session.OwnerCapture {
		t.Errorf("expected capture to hold the session, got %q", guard.Holder())
	}
}
