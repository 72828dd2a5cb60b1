package capture

import (
	"errors"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// PortAudioDevice opens the default system microphone via PortAudio.
type PortAudioDevice struct{}

// NewPortAudioDevice creates a PortAudio-backed input device.
func NewPortAudioDevice() *PortAudioDevice {
	return &PortAudioDevice{}
}

// Open initializes PortAudio and starts a blocking input stream.
func (d *PortAudioDevice) Open(sampleRate, channels int) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	buf := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, err
	}

	return &portAudioStream{stream: stream, buf: buf}, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
	buf    []int16

	mu     sync.Mutex
	closed bool
}

var errStreamClosed = errors.New("input stream closed")

func (s *portAudioStream) Read() ([]int16, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errStreamClosed
	}
	s.mu.Unlock()

	if err := s.stream.Read(); err != nil {
		return nil, err
	}

	out := make([]int16, len(s.buf))
	copy(out, s.buf)
	return out, nil
}

func (s *portAudioStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Abort unblocks a pending Read before the stream shuts down.
	s.stream.Abort()
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}
