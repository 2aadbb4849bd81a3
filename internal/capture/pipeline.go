package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Backpressure policies. Silent unbounded queueing is not an option: when
// the outbound queue is full the pipeline must visibly drop or block.
const (
	// PolicyDropOldest evicts the oldest queued chunk to make room.
	// Loses the oldest audio, keeps captions close to live.
	PolicyDropOldest = "drop_oldest"
	// PolicyDropNewest discards the chunk that does not fit.
	PolicyDropNewest = "drop_newest"
	// PolicyBlock waits up to BlockTimeout for room, then drops.
	PolicyBlock = "block"
)

// PipelineConfig tunes the capture pipeline.
type PipelineConfig struct {
	// Interval is the chunk emission cadence, nominally around one second.
	Interval time.Duration
	// QueueSize bounds the outbound queue.
	QueueSize int
	// Policy is one of the Policy constants above.
	Policy string
	// BlockTimeout applies to PolicyBlock only.
	BlockTimeout time.Duration
}

// Pipeline pulls chunks from a Source on a fixed timer and hands them to the
// sender through a bounded queue. Stop is idempotent.
type Pipeline struct {
	source  Source
	cfg     PipelineConfig
	logger  *slog.Logger
	out     chan []byte
	done    chan struct{}
	stopped chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	emitted atomic.Uint64
	dropped atomic.Uint64
}

// NewPipeline validates cfg and builds a pipeline over source.
func NewPipeline(source Source, cfg PipelineConfig, logger *slog.Logger) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("capture pipeline: source is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("capture pipeline: interval must be positive, got %v", cfg.Interval)
	}
	if cfg.QueueSize < 1 {
		return nil, fmt.Errorf("capture pipeline: queue size must be at least 1, got %d", cfg.QueueSize)
	}
	switch cfg.Policy {
	case PolicyDropOldest, PolicyDropNewest:
	case PolicyBlock:
		if cfg.BlockTimeout <= 0 {
			return nil, fmt.Errorf("capture pipeline: block policy needs a positive timeout, got %v", cfg.BlockTimeout)
		}
	default:
		return nil, fmt.Errorf("capture pipeline: unknown backpressure policy %q", cfg.Policy)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		source:  source,
		cfg:     cfg,
		logger:  logger,
		out:     make(chan []byte, cfg.QueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Chunks is the outbound queue. It is closed when the source is exhausted
// or the pipeline is stopped.
func (p *Pipeline) Chunks() <-chan []byte {
	return p.out
}

// Dropped returns the number of chunks lost to backpressure.
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

// Emitted returns the number of chunks queued successfully.
func (p *Pipeline) Emitted() uint64 {
	return p.emitted.Load()
}

// Start launches the timer loop. Safe to call more than once.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() { go p.run() })
}

// Stop halts chunk emission and releases the source. Calling Stop on an
// already-stopped pipeline is a no-op.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		if err := p.source.Close(); err != nil {
			p.logger.Warn("audio source close failed", "error", err)
		}
	})
	<-p.stopped
}

func (p *Pipeline) run() {
	defer close(p.stopped)
	defer close(p.out)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			chunk, err := p.source.ReadChunk()
			if errors.Is(err, io.EOF) {
				p.logger.Info("audio source exhausted",
					"emitted", p.emitted.Load(),
					"dropped", p.dropped.Load())
				return
			}
			if err != nil {
				p.logger.Error("audio source read failed", "error", err)
				return
			}
			if len(chunk) == 0 {
				continue
			}
			p.enqueue(chunk)
		}
	}
}

func (p *Pipeline) enqueue(chunk []byte) {
	switch p.cfg.Policy {
	case PolicyDropNewest:
		select {
		case p.out <- chunk:
			p.emitted.Add(1)
		default:
			p.dropped.Add(1)
			p.logger.Warn("outbound queue full, dropping newest chunk", "bytes", len(chunk))
		}
	case PolicyDropOldest:
		for {
			select {
			case p.out <- chunk:
				p.emitted.Add(1)
				return
			default:
			}
			select {
			case <-p.out:
				p.dropped.Add(1)
				p.logger.Warn("outbound queue full, evicting oldest chunk")
			default:
			}
		}
	case PolicyBlock:
		timer := time.NewTimer(p.cfg.BlockTimeout)
		defer timer.Stop()
		select {
		case p.out <- chunk:
			p.emitted.Add(1)
		case <-timer.C:
			p.dropped.Add(1)
			p.logger.Warn("outbound queue blocked past timeout, dropping chunk",
				"timeout", p.cfg.BlockTimeout)
		case <-p.done:
		}
	}
}
