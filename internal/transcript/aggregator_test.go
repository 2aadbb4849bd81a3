package transcript

import (
	"reflect"
	"testing"
)

func TestMergeAppendsAndSorts(t *testing.T) {
	agg := NewAggregator()

	existing := []Segment{
		{Start: 0, End: 1, Text: "hello"},
	}
	incoming := []Segment{
		{Start: 2.5, End: 4, Text: "again"},
		{Start: 1, End: 2.4, Text: "world"},
	}

	got := agg.Merge(existing, incoming)

	if len(got) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Start < got[i-1].Start {
			t.Errorf("segments not sorted by start: %v before %v", got[i-1], got[i])
		}
	}
	if got[1].Text != "world" {
		t.Errorf("expected 'world' at index 1, got %q", got[1].Text)
	}
}

func TestMergeDropsNearDuplicates(t *testing.T) {
	agg := NewAggregator()

	existing := []Segment{
		{Start: 1.0, End: 2.0, Text: "first"},
	}
	incoming := []Segment{
		{Start: 1.2, End: 2.1, Text: "refined"}, // within 0.25s? no, 0.2 < 0.25 -> duplicate
	}

	got := agg.Merge(existing, incoming)
	if len(got) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(got))
	}
	if got[0].Text != "first" {
		t.Errorf("first-seen text should win, got %q", got[0].Text)
	}
}

func TestMergeEpsilonBoundary(t *testing.T) {
	agg := NewAggregator()

	existing := []Segment{{Start: 1.0, End: 2.0, Text: "a"}}

	// Exactly epsilon apart is NOT a duplicate (strictly-less comparison).
	got := agg.Merge(existing, []Segment{{Start: 1.25, End: 2.0, Text: "b"}})
	if len(got) != 2 {
		t.Fatalf("segments exactly epsilon apart must both survive, got %d", len(got))
	}

	got = agg.Merge(existing, []Segment{{Start: 1.24, End: 2.0, Text: "c"}})
	if len(got) != 1 {
		t.Fatalf("segments within epsilon must coalesce, got %d", len(got))
	}
}

func TestMergeOverwritePolicy(t *testing.T) {
	agg := NewAggregator(WithOverwrite(true))

	existing := []Segment{{Start: 1.0, End: 2.0, Text: "draft"}}
	got := agg.Merge(existing, []Segment{{Start: 1.1, End: 2.2, Text: "better"}})

	if len(got) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(got))
	}
	if got[0].Text != "better" {
		t.Errorf("overwrite policy should replace text, got %q", got[0].Text)
	}
}

func TestMergeIdempotent(t *testing.T) {
	agg := NewAggregator()

	existing := []Segment{
		{Start: 0, End: 1, Text: "hello"},
	}
	incoming := []Segment{
		{Start: 0.1, End: 1.1, Text: "hello"},
		{Start: 1, End: 4, Text: "world"},
	}

	once := agg.Merge(existing, incoming)
	twice := agg.Merge(once, incoming)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent:\n once=%v\ntwice=%v", once, twice)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	agg := NewAggregator()

	existing := []Segment{
		{Start: 5, End: 6, Text: "later"},
		{Start: 0, End: 1, Text: "earlier"},
	}
	orig := make([]Segment, len(existing))
	copy(orig, existing)

	agg.Merge(existing, []Segment{{Start: 2, End: 3, Text: "middle"}})

	if !reflect.DeepEqual(existing, orig) {
		t.Errorf("merge mutated existing slice: %v", existing)
	}
}

func TestMergeDedupInvariant(t *testing.T) {
	agg := NewAggregator()

	// Simulate repeated overlapping engine output across flushes.
	var got []Segment
	batches := [][]Segment{
		{{Start: 0, End: 1, Text: "one"}},
		{{Start: 0.05, End: 1, Text: "one"}, {Start: 1.1, End: 2, Text: "two"}},
		{{Start: 0.1, End: 1, Text: "one"}, {Start: 1.05, End: 2, Text: "two"}, {Start: 2.2, End: 3, Text: "three"}},
	}
	for _, b := range batches {
		got = agg.Merge(got, b)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 segments after overlapping flushes, got %d: %v", len(got), got)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Start-got[i-1].Start < agg.Epsilon() {
			t.Errorf("dedup invariant violated: %v and %v within epsilon", got[i-1], got[i])
		}
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		want     string
	}{
		{
			name:     "empty",
			segments: nil,
			want:     "",
		},
		{
			name: "joins with spaces",
			segments: []Segment{
				{Start: 0, End: 1, Text: " hello "},
				{Start: 1, End: 2, Text: "world"},
			},
			want: "hello world",
		},
		{
			name: "skips empty segments",
			segments: []Segment{
				{Start: 0, End: 1, Text: "hello"},
				{Start: 1, End: 2, Text: "   "},
				{Start: 2, End: 3, Text: "world"},
			},
			want: "hello world",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.segments); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}
