// Package mock provides a scriptable in-memory transcription engine for
// tests. It records invocation intervals so tests can assert that per-session
// engine calls never overlap.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/engine"
)

// Call records one Transcribe invocation.
type Call struct {
	Audio []byte
	Begin time.Time
	End   time.Time
}

// Engine is a scriptable engine.Engine. Responses are consumed in order; when
// the script is exhausted the last entry repeats. A nil script returns empty
// results.
type Engine struct {
	mu      sync.Mutex
	script  []Response
	next    int
	calls   []Call
	inCalls int // currently executing invocations
	maxIn   int // high-water mark of concurrent invocations
}

// Response is one scripted reply: either a result or an error, with an
// optional simulated processing delay.
type Response struct {
	Result *engine.Result
	Err    error
	Delay  time.Duration
}

// New creates a mock engine with the given script.
func New(script ...Response) *Engine {
	return &Engine{script: script}
}

// Transcribe implements engine.Engine.
func (e *Engine) Transcribe(ctx context.Context, audio []byte) (*engine.Result, error) {
	e.mu.Lock()
	e.inCalls++
	if e.inCalls > e.maxIn {
		e.maxIn = e.inCalls
	}
	var resp Response
	if len(e.script) > 0 {
		idx := e.next
		if idx >= len(e.script) {
			idx = len(e.script) - 1
		}
		resp = e.script[idx]
		e.next++
	}
	call := Call{Audio: append([]byte(nil), audio...), Begin: time.Now()}
	e.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			e.finish(call)
			return nil, &engine.EngineError{Op: "transcribe", Timeout: true, Err: ctx.Err()}
		}
	}

	e.finish(call)

	if resp.Err != nil {
		return nil, resp.Err
	}
	if resp.Result != nil {
		out := *resp.Result
		return &out, nil
	}
	return &engine.Result{}, nil
}

func (e *Engine) finish(call Call) {
	call.End = time.Now()
	e.mu.Lock()
	e.inCalls--
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

// Calls returns a copy of all recorded invocations.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// MaxConcurrent returns the highest number of simultaneously executing
// invocations observed.
func (e *Engine) MaxConcurrent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxIn
}
