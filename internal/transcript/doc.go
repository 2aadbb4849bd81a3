// Package transcript provides segment types and the aggregation logic that
// merges overlapping caption batches into one ordered, de-duplicated
// transcript per session.
package transcript
