// Package session implements the server-side state machine for one streaming
// transcription session.
//
// A Session owns its audio buffer, flush timer, and aggregated transcript.
// All of them are confined to a single run-loop goroutine; the connection
// supervisor delivers decoded control frames and binary audio chunks to the
// loop through a channel, preserving arrival order.
//
// The lifecycle is:
//
//	AwaitingStart -> Buffering <-> Flushing -> Stopping -> Closed
//
// with Errored reachable from any non-terminal state. While a transcription
// call is in flight the session keeps accepting audio; a flush tick that
// fires during an outstanding call is deferred and runs once the call
// returns, so engine invocations for one session never overlap.
package session
