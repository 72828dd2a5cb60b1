// Package encode shells out to ffmpeg for the codec work Go cannot do
// natively: AAC encoding of the canonical payload and PCM extraction for
// playback.
package encode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
)

// Transcoder converts a staging WAV into the canonical M4A payload.
type Transcoder interface {
	Transcode(ctx context.Context, srcPath, dstPath string) error
}

// FFmpeg implements Transcoder and PCM decoding via the ffmpeg binary.
type FFmpeg struct{}

// NewFFmpeg creates an FFmpeg transcoder.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{}
}

// Available reports whether the ffmpeg binary is on PATH.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}
	return nil
}

// Transcode encodes srcPath into an AAC/M4A file at dstPath.
func (f *FFmpeg) Transcode(ctx context.Context, srcPath, dstPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", srcPath,
		"-c:a", "aac",
		"-b:a", "96k",
		"-movflags", "+faststart",
		"-y",
		dstPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg transcode: %w\n%s", err, bytes.TrimSpace(out))
	}
	return nil
}

// DecodePCM decodes any ffmpeg-readable audio file into interleaved int16
// PCM at the requested sample rate and channel count.
func (f *FFmpeg) DecodePCM(ctx context.Context, path string, sampleRate, channels int) ([]int16, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ac", fmt.Sprint(channels),
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w\n%s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	raw := stdout.Bytes()
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, nil
}
