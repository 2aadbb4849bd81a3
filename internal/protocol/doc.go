// Package protocol implements the frame codec for the streaming transcription
// transport: JSON control frames carried as text messages and opaque audio
// payloads carried as binary messages. Decoding is best-effort and
// forward-compatible so a malformed or unknown frame never takes down a
// session.
package protocol
