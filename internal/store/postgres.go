package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by GetTranscript when no transcript has been
// recorded for the session.
var ErrNotFound = errors.New("transcript not found")

// Store records and retrieves final session transcripts.
type Store interface {
	// RecordTranscript persists the final transcript for a session,
	// replacing any previous record for the same session id.
	RecordTranscript(ctx context.Context, sessionID, text string) error
	// GetTranscript returns the recorded transcript or ErrNotFound.
	GetTranscript(ctx context.Context, sessionID string) (string, error)
	// Close releases underlying connections.
	Close()
}

const ddlSessionTranscripts = `
CREATE TABLE IF NOT EXISTS session_transcripts (
    session_id  TEXT         PRIMARY KEY,
    text        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);`

// Postgres is a Store backed by a pgx connection pool. All methods are safe
// for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to the database at dsn, verifies the connection, and
// ensures the session_transcripts table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("transcript store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlSessionTranscripts); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript store: migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// RecordTranscript implements Store with an upsert keyed on session id.
func (p *Postgres) RecordTranscript(ctx context.Context, sessionID, text string) error {
	const q = `
		INSERT INTO session_transcripts (session_id, text)
		VALUES ($1, $2)
		ON CONFLICT (session_id)
		DO UPDATE SET text = EXCLUDED.text, updated_at = now()`

	if _, err := p.pool.Exec(ctx, q, sessionID, text); err != nil {
		return fmt.Errorf("transcript store: record %s: %w", sessionID, err)
	}
	return nil
}

// GetTranscript implements Store.
func (p *Postgres) GetTranscript(ctx context.Context, sessionID string) (string, error) {
	const q = `SELECT text FROM session_transcripts WHERE session_id = $1`

	var text string
	err := p.pool.QueryRow(ctx, q, sessionID).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("transcript store: session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("transcript store: get %s: %w", sessionID, err)
	}
	return text, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
