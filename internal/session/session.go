package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/audio"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/engine"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/metrics"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/protocol"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/transcript"
)

// persistTimeout bounds the fire-and-forget store and event writes that
// happen after a session emits its final caption.
const persistTimeout = 10 * time.Second

// Sender delivers control frames back to the connected client.
type Sender interface {
	SendControl(ctx context.Context, frame *protocol.Control) error
}

// Recorder persists the final transcript of a session. Failures are logged
// and never affect client-visible behavior.
type Recorder interface {
	RecordTranscript(ctx context.Context, sessionID, text string) error
}

// EventSink receives caption events for downstream consumers. Failures are
// logged and never affect client-visible behavior.
type EventSink interface {
	PublishPartial(ctx context.Context, sessionID, text string) error
	PublishFinal(ctx context.Context, sessionID, text string) error
}

// Info is a point-in-time snapshot of a session for the monitoring API.
type Info struct {
	ID              string      `json:"id"`
	State           string      `json:"state"`
	CreatedAt       time.Time   `json:"created_at"`
	BufferSeconds   float64     `json:"buffer_seconds"`
	Buffer          audio.Stats `json:"buffer"`
	Flushes         uint64      `json:"flushes"`
	EngineFailures  uint64      `json:"engine_failures"`
	SegmentCount    int         `json:"segment_count"`
	TranscriptChars int         `json:"transcript_chars"`
}

// inbound is one frame delivered from the connection read loop.
type inbound struct {
	control *protocol.Control
	binary  []byte
}

// flushResult reports the outcome of one engine call back into the run loop.
type flushResult struct {
	result  *engine.Result
	err     error
	elapsed time.Duration
}

// Session is the state machine for one streaming transcription session.
// The run loop goroutine exclusively owns the buffer, the flush timer, and
// the transition logic; other goroutines interact through HandleControl,
// HandleBinary, Close, and the read-only snapshot accessors.
type Session struct {
	id      string
	cfg     Config
	engine  engine.Engine
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
	record  Recorder
	events  EventSink

	buffer *audio.Buffer
	agg    *transcript.Aggregator

	frames    chan inbound
	closing   chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	createdAt     time.Time
	state         atomic.Int32
	bufferSecBits atomic.Uint64
	flushes       atomic.Uint64
	failures      atomic.Uint64
	consecutive   atomic.Int32

	trMu     sync.Mutex
	segments []transcript.Segment
	lastText string

	// Run-loop confined state. Never touched outside run().
	ticker        *time.Ticker
	tick          <-chan time.Time
	flushInFlight bool
	flushPending  bool
}

// Option configures optional session collaborators.
type Option func(*Session)

// WithLogger sets the base logger. The session id is attached automatically.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithRecorder attaches a durable transcript store.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.record = r }
}

// WithEventSink attaches a caption event publisher.
func WithEventSink(e EventSink) Option {
	return func(s *Session) { s.events = e }
}

// New creates a session bound to one connection. Call Start to launch the
// run loop.
func New(id string, cfg Config, eng engine.Engine, sender Sender, opts ...Option) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if eng == nil {
		return nil, fmt.Errorf("transcription engine is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("frame sender is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	s := &Session{
		id:        id,
		cfg:       cfg,
		engine:    eng,
		sender:    sender,
		logger:    slog.Default(),
		buffer:    audio.NewBuffer(cfg.MaxBufferBytes),
		agg:       transcript.NewAggregator(transcript.WithEpsilon(cfg.DedupEpsilon), transcript.WithOverwrite(cfg.MergeOverwrite)),
		frames:    make(chan inbound, 64),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", id)
	s.state.Store(int32(StateAwaitingStart))
	s.bufferSecBits.Store(math.Float64bits(cfg.DefaultBufferSeconds))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed when the run loop has finished and all resources are
// released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start launches the run loop. Safe to call more than once.
func (s *Session) Start() {
	s.startOnce.Do(func() { go s.run() })
}

// HandleControl delivers a decoded control frame in arrival order. It is a
// no-op once the session has closed.
func (s *Session) HandleControl(frame *protocol.Control) {
	s.deliver(inbound{control: frame})
}

// HandleBinary delivers one opaque audio chunk in arrival order. The chunk
// is copied, so the caller may reuse its buffer.
func (s *Session) HandleBinary(data []byte) {
	chunk := make([]byte, len(data))
	copy(chunk, data)
	s.deliver(inbound{binary: chunk})
}

func (s *Session) deliver(in inbound) {
	select {
	case s.frames <- in:
	case <-s.done:
	}
}

// Close initiates shutdown (idempotent) and waits for the run loop to finish
// or ctx to expire. The run loop drains any in-flight flush within the
// configured grace period, attempts a final pass, and releases resources.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session %s shutdown: %w", s.id, ctx.Err())
	}
}

// Transcript returns a copy of the aggregated segments and the current text.
func (s *Session) Transcript() ([]transcript.Segment, string) {
	s.trMu.Lock()
	defer s.trMu.Unlock()
	segs := make([]transcript.Segment, len(s.segments))
	copy(segs, s.segments)
	return segs, s.lastText
}

// Info returns a monitoring snapshot.
func (s *Session) Info() Info {
	segs, text := s.Transcript()
	return Info{
		ID:              s.id,
		State:           s.State().String(),
		CreatedAt:       s.createdAt,
		BufferSeconds:   math.Float64frombits(s.bufferSecBits.Load()),
		Buffer:          s.buffer.GetStats(),
		Flushes:         s.flushes.Load(),
		EngineFailures:  s.failures.Load(),
		SegmentCount:    len(segs),
		TranscriptChars: len(text),
	}
}

// run is the single goroutine that owns all session state transitions.
func (s *Session) run() {
	defer close(s.done)

	// Buffered so an abandoned engine goroutine can always complete its
	// send and exit.
	flushDone := make(chan flushResult, 1)

	for {
		select {
		case in := <-s.frames:
			var fatal bool
			if in.control != nil {
				fatal = s.handleControl(in.control)
			} else {
				s.handleBinary(in.binary)
			}
			if fatal {
				s.shutdown(flushDone)
				return
			}
		case <-s.tick:
			s.onTick(flushDone)
		case res := <-flushDone:
			if fatal := s.onFlushResult(res, flushDone); fatal {
				s.shutdown(flushDone)
				return
			}
		case <-s.closing:
			s.shutdown(flushDone)
			return
		}
	}
}

// handleControl processes one client control frame. It returns true when the
// session must proceed to shutdown (stop frame or a fatal condition).
func (s *Session) handleControl(frame *protocol.Control) bool {
	switch frame.Type {
	case protocol.KindStart:
		s.onStart(frame)
		return s.State() == StateErrored
	case protocol.KindStop:
		s.logger.Info("stop frame received", "state", s.State().String())
		return true
	default:
		// Clients have no business sending server-direction or unknown
		// kinds; report and continue.
		s.logger.Warn("unexpected control frame", "type", frame.Type)
		s.send(protocol.ErrorFrame(fmt.Sprintf("unexpected %s frame", frame.Type)))
		return false
	}
}

func (s *Session) onStart(frame *protocol.Control) {
	if s.State() != StateAwaitingStart {
		s.send(protocol.ErrorFrame("session already started"))
		return
	}
	requested := frame.BufferSeconds
	if requested < 0 || math.IsNaN(requested) || math.IsInf(requested, 0) {
		s.logger.Error("malformed start frame", "buffer_seconds", requested)
		s.state.Store(int32(StateErrored))
		s.send(protocol.ErrorFrame("invalid buffer_seconds"))
		return
	}
	bufferSeconds := s.cfg.clampBufferSeconds(requested)
	s.bufferSecBits.Store(math.Float64bits(bufferSeconds))

	s.ticker = time.NewTicker(time.Duration(bufferSeconds * float64(time.Second)))
	s.tick = s.ticker.C
	s.state.Store(int32(StateBuffering))
	s.send(protocol.Started(s.id))
	s.logger.Info("session started",
		"requested_buffer_seconds", requested,
		"buffer_seconds", bufferSeconds)
}

func (s *Session) handleBinary(chunk []byte) {
	switch s.State() {
	case StateBuffering, StateFlushing:
	default:
		s.logger.Warn("binary frame without active session", "bytes", len(chunk))
		s.send(protocol.ErrorFrame("no active session"))
		return
	}
	if err := s.buffer.Append(chunk); err != nil {
		s.logger.Warn("audio chunk refused", "bytes", len(chunk), "error", err)
		if s.metrics != nil {
			s.metrics.RecordAudioRefused(len(chunk))
		}
		s.send(protocol.ErrorFrame("audio buffer full"))
		return
	}
	if s.metrics != nil {
		s.metrics.RecordAudioBuffered(len(chunk))
	}
	s.send(protocol.Ack())
}

func (s *Session) onTick(flushDone chan flushResult) {
	switch s.State() {
	case StateBuffering, StateFlushing:
	default:
		return
	}
	if s.flushInFlight {
		// At most one engine call per session is ever in flight; a tick
		// that lands mid-call is deferred, not dropped.
		s.flushPending = true
		if s.metrics != nil {
			s.metrics.RecordFlushDeferred()
		}
		return
	}
	s.startFlush(flushDone)
}

// startFlush submits the configured window to the engine in a short-lived
// goroutine that reports back through flushDone.
func (s *Session) startFlush(flushDone chan flushResult) {
	var data []byte
	if s.cfg.FlushWindow == FlushWindowTail {
		data = s.buffer.Tail()
	} else {
		data = s.buffer.Snapshot()
	}
	if len(data) == 0 {
		return
	}
	s.flushInFlight = true
	s.state.Store(int32(StateFlushing))

	timeout := s.cfg.FlushTimeout
	begin := time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		result, err := s.engine.Transcribe(ctx, data)
		flushDone <- flushResult{result: result, err: err, elapsed: time.Since(begin)}
	}()
}

// onFlushResult folds an engine call outcome back into the session. It
// returns true when the consecutive-failure budget is exhausted.
func (s *Session) onFlushResult(res flushResult, flushDone chan flushResult) bool {
	s.flushInFlight = false
	s.flushes.Add(1)
	timedOut := engine.IsTimeout(res.err)
	if s.metrics != nil {
		s.metrics.RecordFlush(res.elapsed.Seconds(), res.err, timedOut)
	}

	if res.err != nil {
		s.failures.Add(1)
		consecutive := int(s.consecutive.Add(1))
		s.logger.Error("flush failed",
			"error", res.err,
			"elapsed", res.elapsed,
			"consecutive_failures", consecutive)
		if timedOut {
			s.send(protocol.ErrorFrame("engine timeout"))
		} else {
			s.send(protocol.ErrorFrame("transcription failed"))
		}
		if consecutive >= s.cfg.EngineFailureThreshold {
			s.state.Store(int32(StateErrored))
			s.send(protocol.ErrorFrame(fmt.Sprintf(
				"transcription engine unavailable after %d consecutive failures", consecutive)))
			return true
		}
		s.state.Store(int32(StateBuffering))
		s.runPendingFlush(flushDone)
		return false
	}

	s.consecutive.Store(0)
	segments, text := s.mergeResult(res.result)
	s.state.Store(int32(StateBuffering))
	s.send(protocol.Partial(text, segments))
	if s.metrics != nil {
		s.metrics.RecordCaption("partial")
	}
	if s.events != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := s.events.PublishPartial(ctx, s.id, text); err != nil {
				s.logger.Warn("partial event publish failed", "error", err)
			}
		}()
	}
	s.runPendingFlush(flushDone)
	return false
}

func (s *Session) runPendingFlush(flushDone chan flushResult) {
	if s.flushPending {
		s.flushPending = false
		s.startFlush(flushDone)
	}
}

// mergeResult folds one engine result into the aggregated transcript and
// returns a caption-safe copy of the segments plus the current text.
func (s *Session) mergeResult(result *engine.Result) ([]transcript.Segment, string) {
	s.trMu.Lock()
	defer s.trMu.Unlock()
	if result != nil {
		if len(result.Segments) > 0 {
			s.segments = s.agg.Merge(s.segments, result.Segments)
			s.lastText = transcript.Text(s.segments)
		} else if text := strings.TrimSpace(result.Text); text != "" {
			s.lastText = text
		}
	}
	segs := make([]transcript.Segment, len(s.segments))
	copy(segs, s.segments)
	return segs, s.lastText
}

// shutdown drains the session: the in-flight flush is awaited within the
// grace period, a final pass runs with the shorter stop deadline, and the
// final caption is emitted best-effort before resources are released.
func (s *Session) shutdown(flushDone chan flushResult) {
	errored := s.State() == StateErrored
	started := s.State() != StateAwaitingStart || errored
	s.state.Store(int32(StateStopping))
	if s.ticker != nil {
		s.ticker.Stop()
		s.tick = nil
	}

	if s.flushInFlight {
		grace := time.NewTimer(s.cfg.StopGrace)
		select {
		case res := <-flushDone:
			s.flushInFlight = false
			if res.err == nil {
				s.mergeResult(res.result)
			}
		case <-grace.C:
			s.logger.Warn("abandoning in-flight flush", "grace", s.cfg.StopGrace)
		}
		grace.Stop()
	}

	// Final pass over everything buffered so far. Skipped when the engine
	// already proved itself unavailable.
	if !errored {
		if data := s.buffer.Snapshot(); len(data) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StopFlushTimeout)
			result, err := s.engine.Transcribe(ctx, data)
			cancel()
			if err != nil {
				s.logger.Warn("final transcription pass failed", "error", err)
			} else {
				s.mergeResult(result)
			}
		}
	}

	_, text := s.Transcript()
	if errored {
		// The fatal error frame is the last client-visible message.
		s.logger.Info("session errored", "transcript_chars", len(text))
	} else if started {
		s.send(protocol.Final(text))
		if s.metrics != nil {
			s.metrics.RecordCaption("final")
		}
	}
	if started {
		s.persistFinal(text)
	}

	s.buffer.Reset()
	s.state.Store(int32(StateClosed))
	s.logger.Info("session closed",
		"duration", time.Since(s.createdAt),
		"flushes", s.flushes.Load(),
		"engine_failures", s.failures.Load(),
		"transcript_chars", len(text))
}

// persistFinal hands the final transcript to the store and event sink
// without blocking or affecting the protocol path.
func (s *Session) persistFinal(text string) {
	if s.record != nil {
		rec := s.record
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := rec.RecordTranscript(ctx, s.id, text); err != nil {
				s.logger.Error("transcript persistence failed", "error", err)
			}
		}()
	}
	if s.events != nil {
		sink := s.events
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := sink.PublishFinal(ctx, s.id, text); err != nil {
				s.logger.Warn("final event publish failed", "error", err)
			}
		}()
	}
}

func (s *Session) send(frame *protocol.Control) {
	if err := s.sender.SendControl(context.Background(), frame); err != nil {
		s.logger.Warn("frame send failed", "type", frame.Type, "error", err)
	}
}
