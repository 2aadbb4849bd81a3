package capture

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/audio"
)

// Source yields successive audio chunks. ReadChunk returns io.EOF once the
// source is exhausted.
type Source interface {
	ReadChunk() ([]byte, error)
	Close() error
}

// FileSource replays a 16-bit mono WAV file as real-time-sized PCM chunks,
// standing in for a live microphone during development and batch runs.
type FileSource struct {
	pcm        []byte
	sampleRate int
	chunkBytes int
	offset     int
}

var _ Source = (*FileSource)(nil)

// NewFileSource loads the WAV file at path and splits it into chunks each
// covering interval of wall-clock audio.
func NewFileSource(path string, interval time.Duration) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture source: read %s: %w", path, err)
	}
	pcm, sampleRate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("capture source: %s: %w", path, err)
	}

	chunkBytes := int(float64(sampleRate) * 2 * interval.Seconds())
	if chunkBytes < 2 {
		return nil, fmt.Errorf("capture source: interval %v too small for %d Hz audio", interval, sampleRate)
	}
	// Keep chunks sample-aligned.
	chunkBytes -= chunkBytes % 2

	return &FileSource{
		pcm:        pcm,
		sampleRate: sampleRate,
		chunkBytes: chunkBytes,
	}, nil
}

// SampleRate returns the source sample rate in Hz.
func (f *FileSource) SampleRate() int {
	return f.sampleRate
}

// ReadChunk implements Source.
func (f *FileSource) ReadChunk() ([]byte, error) {
	if f.offset >= len(f.pcm) {
		return nil, io.EOF
	}
	end := f.offset + f.chunkBytes
	if end > len(f.pcm) {
		end = len(f.pcm)
	}
	chunk := make([]byte, end-f.offset)
	copy(chunk, f.pcm[f.offset:end])
	f.offset = end
	return chunk, nil
}

// Close implements Source.
func (f *FileSource) Close() error {
	f.pcm = nil
	f.offset = 0
	return nil
}
