package playback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"github.com/voxvault/voxvault/internal/audio/encode"
)

const (
	decodeRate      = 44100
	framesPerBuffer = 1024
	decodeTimeout   = time.Minute
)

// FileOpener decodes audio files fully into memory and plays them through
// the default PortAudio output. WAV files decode natively; everything else
// goes through ffmpeg.
type FileOpener struct {
	ffmpeg *encode.FFmpeg
}

// NewFileOpener creates a FileOpener.
func NewFileOpener(ffmpeg *encode.FFmpeg) *FileOpener {
	return &FileOpener{ffmpeg: ffmpeg}
}

// Open decodes path and returns a Player over its PCM samples.
func (o *FileOpener) Open(path string) (Player, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return o.openWAV(path)
	default:
		ctx, cancel := context.WithTimeout(context.Background(), decodeTimeout)
		defer cancel()
		samples, err := o.ffmpeg.DecodePCM(ctx, path, decodeRate, 1)
		if err != nil {
			return nil, err
		}
		return newPCMPlayer(samples, decodeRate, 1), nil
	}
}

func (o *FileOpener) openWAV(path string) (Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file: %s", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return newPCMPlayer(samples, int(decoder.SampleRate), int(decoder.NumChans)), nil
}

// pcmPlayer plays an in-memory interleaved int16 buffer through PortAudio.
// The output stream uses a callback that advances a cursor; pause stops the
// stream without moving the cursor, stop rewinds it.
type pcmPlayer struct {
	rate     int
	channels int

	mu      sync.Mutex
	samples []int16
	cursor  int
	stream  *portaudio.Stream
	running bool
}

func newPCMPlayer(samples []int16, rate, channels int) *pcmPlayer {
	if channels < 1 {
		channels = 1
	}
	return &pcmPlayer{samples: samples, rate: rate, channels: channels}
}

func (p *pcmPlayer) Duration() float64 {
	return float64(len(p.samples)) / float64(p.rate*p.channels)
}

func (p *pcmPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
		stream, err := portaudio.OpenDefaultStream(0, p.channels, float64(p.rate),
			framesPerBuffer, p.fill)
		if err != nil {
			portaudio.Terminate()
			return err
		}
		p.stream = stream
	}

	if p.running {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return err
	}
	p.running = true
	return nil
}

// fill is the PortAudio output callback.
func (p *pcmPlayer) fill(out []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := copy(out, p.samples[p.cursor:])
	p.cursor += n
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}

func (p *pcmPlayer) Pause() error {
	p.mu.Lock()
	stream, running := p.stream, p.running
	p.running = false
	p.mu.Unlock()

	if stream != nil && running {
		return stream.Stop()
	}
	return nil
}

func (p *pcmPlayer) Stop() error {
	err := p.Pause()
	p.mu.Lock()
	p.cursor = 0
	p.mu.Unlock()
	return err
}

func (p *pcmPlayer) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := int(seconds * float64(p.rate))
	idx := frame * p.channels
	if idx < 0 {
		idx = 0
	}
	if idx > len(p.samples) {
		idx = len(p.samples)
	}
	p.cursor = idx
	return nil
}

func (p *pcmPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.cursor) / float64(p.rate*p.channels)
}

func (p *pcmPlayer) Close() error {
	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	p.running = false
	p.mu.Unlock()

	if stream == nil {
		return nil
	}
	stream.Abort()
	err := stream.Close()
	portaudio.Terminate()
	return err
}
