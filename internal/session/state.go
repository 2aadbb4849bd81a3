package session

// State identifies where a session is in its lifecycle.
type State int32

const (
	// StateAwaitingStart means the connection is open but no start frame
	// has been accepted yet. Binary frames are rejected in this state.
	StateAwaitingStart State = iota
	// StateBuffering means audio is being accumulated and the flush timer
	// is running.
	StateBuffering
	// StateFlushing means a transcription call is in flight. Audio keeps
	// accumulating while the call runs.
	StateFlushing
	// StateStopping means the session is draining: the outstanding flush
	// is awaited within a grace period and a final pass is attempted.
	StateStopping
	// StateClosed is terminal; all resources are released.
	StateClosed
	// StateErrored is entered on unrecoverable conditions such as a
	// malformed start frame or repeated engine failures. It emits one
	// error frame and then forces the stopping path.
	StateErrored
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting_start"
	case StateBuffering:
		return "buffering"
	case StateFlushing:
		return "flushing"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}
