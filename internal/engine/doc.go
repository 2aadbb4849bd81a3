// Package engine defines the transcription engine collaborator interface and
// an HTTP implementation targeting whisper-style transcription endpoints.
// The engine accepts a bounded audio buffer and returns timestamped text
// segments; it is safe to call repeatedly on overlapping windows.
package engine
