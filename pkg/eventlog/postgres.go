package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/antigravity-dev/robogovern/pkg/store"
)

// Store is the persistence surface C7 and C8 depend on.
type Store interface {
	Append(ctx context.Context, runID, eventType string, payload any) (Event, error)
	List(ctx context.Context, runID string) ([]Event, error)
	Verify(ctx context.Context, runID string) error
}

// PostgresStore is the pgx-backed Store. Appends to the same run are
// serialized with a per-run advisory transaction lock — the same "claim
// exclusivity before mutating, inside one transaction" shape as the
// teacher's claimNextSession (pkg/queue/worker.go), adapted from a row-level
// FOR UPDATE SKIP LOCKED claim to an advisory lock since events have no
// single claimable row to lock until after they're written.
type PostgresStore struct {
	pool *store.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *store.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append writes the next event for runID, chaining it to the current tail.
// It never retries internally; ErrConcurrentAppend signals the caller (C7's
// control loop) to retry once, per the run loop's documented retry policy.
func (s *PostgresStore) Append(ctx context.Context, runID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: marshal payload: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, runLockKey(runID)); err != nil {
		return Event{}, fmt.Errorf("eventlog: acquire run lock: %w", err)
	}

	var tailSeq int64
	var tailHash string
	row := tx.QueryRow(ctx, `SELECT seq, hash FROM events WHERE run_id = $1 ORDER BY seq DESC LIMIT 1`, runID)
	switch err := row.Scan(&tailSeq, &tailHash); err {
	case nil:
		// existing tail
	case pgx.ErrNoRows:
		tailSeq = 0
		tailHash = GenesisHash
	default:
		return Event{}, fmt.Errorf("eventlog: read tail: %w", err)
	}

	e := Event{
		RunID:    runID,
		Seq:      tailSeq + 1,
		Type:     eventType,
		Payload:  raw,
		PrevHash: tailHash,
	}
	// TIMESTAMPTZ keeps microseconds; hash the value List will read back.
	e.Timestamp = time.Now().UTC().Truncate(time.Microsecond)
	e.Hash, err = computeHash(e)
	if err != nil {
		return Event{}, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO events (run_id, seq, ts, type, payload, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, seq) DO NOTHING`,
		e.RunID, e.Seq, e.Timestamp, e.Type, e.Payload, e.PrevHash, e.Hash)
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: insert event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Event{}, ErrConcurrentAppend
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("eventlog: commit: %w", err)
	}
	return e, nil
}

// List returns every event for runID in seq order.
func (s *PostgresStore) List(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, seq, ts, type, payload, prev_hash, hash
		FROM events WHERE run_id = $1 ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Timestamp, &e.Type, &e.Payload, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("eventlog: scan: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: rows: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrRunNotFound
	}
	return out, nil
}

// Verify re-derives every hash in the run's chain and fails closed on the
// first mismatch or gap.
func (s *PostgresStore) Verify(ctx context.Context, runID string) error {
	events, err := s.List(ctx, runID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return ErrRunNotFound
	}
	return Verify(events)
}

// runLockKey derives a stable int64 advisory-lock key from a run_id string.
func runLockKey(runID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runID))
	return int64(h.Sum64())
}
