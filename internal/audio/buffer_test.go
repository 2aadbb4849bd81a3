package audio

import (
	"bytes"
	"sync"
	"testing"
)

func TestBufferAppendAndSnapshot(t *testing.T) {
	b := NewBuffer(1024)

	if err := b.Append([]byte("abc")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := b.Append([]byte("def")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	snap := b.Snapshot()
	if !bytes.Equal(snap, []byte("abcdef")) {
		t.Errorf("snapshot mismatch: %q", snap)
	}

	// Snapshot must be a copy.
	snap[0] = 'x'
	if b.Snapshot()[0] != 'a' {
		t.Error("snapshot aliased internal storage")
	}
}

func TestBufferTailAdvancesWatermark(t *testing.T) {
	b := NewBuffer(1024)

	b.Append([]byte("one"))
	b.Append([]byte("two"))

	if got := b.Tail(); !bytes.Equal(got, []byte("onetwo")) {
		t.Errorf("first tail = %q", got)
	}
	if got := b.Tail(); got != nil {
		t.Errorf("second tail should be empty, got %q", got)
	}

	b.Append([]byte("three"))
	if got := b.Tail(); !bytes.Equal(got, []byte("three")) {
		t.Errorf("tail after new append = %q", got)
	}

	// Snapshot still sees everything.
	if got := b.Snapshot(); !bytes.Equal(got, []byte("onetwothree")) {
		t.Errorf("snapshot after tails = %q", got)
	}
}

func TestBufferRefusesWhenFull(t *testing.T) {
	b := NewBuffer(5)

	if err := b.Append([]byte("abcd")); err != nil {
		t.Fatalf("append within cap failed: %v", err)
	}
	if err := b.Append([]byte("ef")); err == nil {
		t.Fatal("append past cap should fail")
	}

	// Refused chunk must not corrupt buffered data.
	if got := b.Snapshot(); !bytes.Equal(got, []byte("abcd")) {
		t.Errorf("buffer contents changed after refused append: %q", got)
	}

	stats := b.GetStats()
	if stats.RefusedChunks != 1 || stats.RefusedBytes != 2 {
		t.Errorf("refusal counters wrong: %+v", stats)
	}
	if stats.Chunks != 1 {
		t.Errorf("expected 1 accepted chunk, got %d", stats.Chunks)
	}
}

func TestBufferConcurrentAppendAndTail(t *testing.T) {
	b := NewBuffer(1 << 20)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			b.Append([]byte{byte(i), byte(i >> 8)})
		}
	}()

	var collected int
	for i := 0; i < 100; i++ {
		collected += len(b.Tail())
	}
	wg.Wait()
	collected += len(b.Tail())

	if collected != 1000 {
		t.Errorf("tails lost or duplicated bytes: collected %d, want 1000", collected)
	}
}

func TestBufferReset(t *testing.T) {
	b := NewBuffer(1024)
	b.Append([]byte("data"))
	b.Reset()

	if b.Len() != 0 {
		t.Errorf("expected empty buffer after reset, got %d bytes", b.Len())
	}
	if got := b.Tail(); got != nil {
		t.Errorf("tail after reset should be empty, got %q", got)
	}
}
