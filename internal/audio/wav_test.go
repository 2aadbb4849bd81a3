package audio

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xFF, 0x7F, 0x00, 0x80, 0x34, 0x12}

	wav, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Errorf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}

	got, rate, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("PCM payload mismatch: %v", got)
	}
}

func TestEncodeWAVRejectsBadInput(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("empty audio should fail")
	}
	if _, err := EncodeWAV([]byte{1, 2, 3}, 16000); err == nil {
		t.Error("odd-length PCM-16 should fail")
	}
	if _, err := EncodeWAV([]byte{1, 2}, 0); err == nil {
		t.Error("zero sample rate should fail")
	}
}

func TestDecodeWAVRejectsBadInput(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("short")); err == nil {
		t.Error("truncated data should fail")
	}

	notRIFF := make([]byte, 64)
	copy(notRIFF, "JUNK")
	if _, _, err := DecodeWAV(notRIFF); err == nil {
		t.Error("non-RIFF data should fail")
	}
}
