// Package capture implements the client half of the streaming protocol: an
// audio source chunked on a fixed timer, a bounded outbound queue with an
// explicit backpressure policy, and a WebSocket client that performs the
// start/stop handshake and rebuilds the transcript from caption frames.
package capture
