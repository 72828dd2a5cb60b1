package session_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voxvault/voxvault/internal/audio/capture"
	"github.com/voxvault/voxvault/internal/audio/playback"
	"github.com/voxvault/voxvault/internal/audio/session"
	"github.com/voxvault/voxvault/internal/logging"
	"github.com/voxvault/voxvault/internal/recording/store"
)

// micStream paces out a fixed frame until closed.
type micStream struct {
	once   sync.Once
	closed chan struct{}
}

func (s *micStream) Read() ([]int16, error) {
	select {
	case <-s.closed:
		return nil, io.EOF
	default:
	}
	time.Sleep(time.Millisecond)
	return []int16{100, -100, 200, -200}, nil
}

func (s *micStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type micDevice struct{}

func (micDevice) Open(sampleRate, channels int) (capture.Stream, error) {
	return &micStream{closed: make(chan struct{})}, nil
}

type copyTranscoder struct{}

func (copyTranscoder) Transcode(ctx context.Context, srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	return os.WriteFile(dstPath, data, 0o644)
}

type clipPlayer struct {
	duration float64
}

func (p *clipPlayer) Duration() float64          { return p.duration }
func (p *clipPlayer) Play() error                { return nil }
func (p *clipPlayer) Pause() error               { return nil }
func (p *clipPlayer) Stop() error                { return nil }
func (p *clipPlayer) Seek(seconds float64) error { return nil }
func (p *clipPlayer) Position() float64          { return 0 }
func (p *clipPlayer) Close() error               { return nil }

type clipOpener struct{}

func (clipOpener) Open(path string) (playback.Player, error) {
	return &clipPlayer{duration: 30}, nil
}

// Starting playback while a recording is in progress must stop and finalize
// the recording before audio output begins: both engines share one session.
func TestPlaybackEvictsActiveCapture(t *testing.T) {
	guard := session.NewGuard()
	st := store.New(t.TempDir())

	rec := capture.New(st, micDevice{}, copyTranscoder{}, guard, logging.Nop{})
	play := playback.New(clipOpener{}, guard, logging.Nop{})

	if _, err := rec.Start(context.Background()); err != nil {
		t.Fatalf("capture start failed: %v", err)
	}
	if got := rec.State(); got != capture.StateRecording {
		t.Fatalf("expected recording state, got %v", got)
	}

	clip := filepath.Join(t.TempDir(), "audio.m4a")
	if err := os.WriteFile(clip, []byte("clip"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := play.Play(clip); err != nil {
		t.Fatalf("playback start failed: %v", err)
	}

	if got := rec.State(); got != capture.StateIdle {
		t.Errorf("capture was not evicted, state %v", got)
	}
	if got := play.State(); got != playback.StatePlaying {
		t.Errorf("expected playback playing, got %v", got)
	}

	// The evicted recording was finalized, not discarded.
	folders, err := st.ListRecordingFolders()
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 {
		t.Errorf("expected the evicted recording on disk, found %d folders", len(folders))
	}

	play.Stop()
}
