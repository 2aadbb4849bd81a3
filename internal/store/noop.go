package store

import "context"

// Noop is the Store used when no database is configured. Writes vanish and
// reads report ErrNotFound.
type Noop struct{}

var _ Store = Noop{}

func (Noop) RecordTranscript(context.Context, string, string) error {
	return nil
}

func (Noop) GetTranscript(_ context.Context, sessionID string) (string, error) {
	return "", ErrNotFound
}

func (Noop) Close() {}
