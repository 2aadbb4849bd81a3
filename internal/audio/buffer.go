package audio

import (
	"fmt"
	"sync"
	"time"
)

// Buffer is the bounded append-only audio buffer owned by one session.
//
// Two producers touch it concurrently: the connection read loop appending
// chunks and the flush path reading them. Every method takes the mutex, so a
// flush observes either all or none of a concurrent append.
//
// Audio bytes are opaque. Because compressed container formats (webm/opus)
// are only decodable from the stream head, a full buffer refuses further
// appends rather than dropping the oldest data; refused bytes are counted for
// monitoring.
type Buffer struct {
	data       []byte
	maxBytes   int
	flushedPos int // bytes already handed out via Tail

	chunks        uint64
	refusedChunks uint64
	refusedBytes  uint64
	lastAppend    time.Time

	mu sync.Mutex
}

// Stats is a snapshot of buffer counters for monitoring.
type Stats struct {
	Bytes          int       `json:"bytes"`
	UnflushedBytes int       `json:"unflushed_bytes"`
	Chunks         uint64    `json:"chunks"`
	RefusedChunks  uint64    `json:"refused_chunks"`
	RefusedBytes   uint64    `json:"refused_bytes"`
	LastAppend     time.Time `json:"last_append"`
}

// NewBuffer creates a Buffer capped at maxBytes. A non-positive cap defaults
// to 32 MiB, roughly an hour of opus-compressed speech.
func NewBuffer(maxBytes int) *Buffer {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &Buffer{
		data:     make([]byte, 0, 64<<10),
		maxBytes: maxBytes,
	}
}

// Append adds one audio chunk. It fails when the cap would be exceeded; the
// chunk is counted as refused and the caller reports the condition without
// tearing the session down.
func (b *Buffer) Append(chunk []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data)+len(chunk) > b.maxBytes {
		b.refusedChunks++
		b.refusedBytes += uint64(len(chunk))
		return fmt.Errorf("audio buffer full: %d bytes buffered, cap %d, chunk %d",
			len(b.data), b.maxBytes, len(chunk))
	}

	b.data = append(b.data, chunk...)
	b.chunks++
	b.lastAppend = time.Now()
	return nil
}

// Snapshot returns a copy of everything buffered so far. Used by the "full"
// flush-window policy and by the final pass at session end.
func (b *Buffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Tail returns a copy of the bytes appended since the previous Tail call and
// advances the flushed watermark. The read and the watermark update happen
// under one lock acquisition, so concurrent appends land entirely in the next
// tail.
func (b *Buffer) Tail() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.flushedPos >= len(b.data) {
		return nil
	}
	out := make([]byte, len(b.data)-b.flushedPos)
	copy(out, b.data[b.flushedPos:])
	b.flushedPos = len(b.data)
	return out
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Reset releases the buffered audio. Called once when the session closes.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
	b.flushedPos = 0
}

// GetStats returns current buffer counters.
func (b *Buffer) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Bytes:          len(b.data),
		UnflushedBytes: len(b.data) - b.flushedPos,
		Chunks:         b.chunks,
		RefusedChunks:  b.refusedChunks,
		RefusedBytes:   b.refusedBytes,
		LastAppend:     b.lastAppend,
	}
}
