package transcript

import (
	"sort"
	"strings"
)

// DefaultEpsilon is the start-time window within which two segments are
// considered the same utterance. The engine re-transcribes overlapping
// audio windows on every flush, so near-identical segments arrive repeatedly.
const DefaultEpsilon = 0.25

// Segment represents a timestamped span of transcribed text.
// Immutable once created.
type Segment struct {
	Start float64 `json:"start"` // seconds from session start
	End   float64 `json:"end"`   // seconds from session start
	Text  string  `json:"text"`
}

// Aggregator merges incoming segment batches into an ordered, de-duplicated
// transcript. The zero value is not usable; construct with NewAggregator.
//
// Merge is a pure function over its inputs: it never mutates the existing
// slice, and applying it twice with the same incoming batch yields the same
// result.
type Aggregator struct {
	epsilon   float64
	overwrite bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithEpsilon overrides the duplicate-detection window in seconds.
func WithEpsilon(epsilon float64) Option {
	return func(a *Aggregator) {
		if epsilon > 0 {
			a.epsilon = epsilon
		}
	}
}

// WithOverwrite makes later re-transcriptions of the same time window replace
// earlier text. The default keeps the first-seen text so captions already
// shown to a viewer never change retroactively.
func WithOverwrite(overwrite bool) Option {
	return func(a *Aggregator) {
		a.overwrite = overwrite
	}
}

// NewAggregator creates an Aggregator with the given options.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{epsilon: DefaultEpsilon}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Epsilon returns the configured duplicate-detection window in seconds.
func (a *Aggregator) Epsilon() float64 {
	return a.epsilon
}

// Merge combines incoming segments into the existing transcript.
//
// For each incoming segment an existing segment whose start time differs by
// less than epsilon is treated as the same utterance: the incoming one is
// dropped (or, with overwrite enabled, replaces the existing text). All other
// incoming segments are appended. The result is sorted by start time so the
// ordering invariant holds even when arrival order and time order diverge at
// buffer boundaries.
func (a *Aggregator) Merge(existing []Segment, incoming []Segment) []Segment {
	merged := make([]Segment, len(existing))
	copy(merged, existing)

	for _, in := range incoming {
		idx := -1
		for i, have := range merged {
			if abs(have.Start-in.Start) < a.epsilon {
				idx = i
				break
			}
		}
		if idx >= 0 {
			if a.overwrite {
				merged[idx] = in
			}
			continue
		}
		merged = append(merged, in)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})

	return merged
}

// Text renders a transcript as a single string, joining the trimmed segment
// texts with single spaces. Empty segments are skipped.
func Text(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
