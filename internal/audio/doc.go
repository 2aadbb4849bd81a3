// Package audio provides the per-session audio buffer and WAV framing
// helpers. The buffer treats audio as opaque bytes: the transport delivers
// compressed or raw chunks in order and the transcription engine consumes
// them as-is.
package audio
