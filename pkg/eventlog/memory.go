package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by unit tests and by components
// that don't need durability. It applies the exact same hash-chaining rules
// as PostgresStore.
type MemoryStore struct {
	mu    sync.Mutex
	runs  map[string][]Event
	races map[string]int // testing hook: forces N ErrConcurrentAppend before succeeding
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]Event)}
}

// InjectRace forces the next n Append calls for runID to fail with
// ErrConcurrentAppend before succeeding, so callers can exercise their
// retry-once path deterministically.
func (s *MemoryStore) InjectRace(runID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.races == nil {
		s.races = make(map[string]int)
	}
	s.races[runID] = n
}

func (s *MemoryStore) Append(ctx context.Context, runID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("eventlog: marshal payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.races[runID]; n > 0 {
		s.races[runID] = n - 1
		return Event{}, ErrConcurrentAppend
	}

	chain := s.runs[runID]
	prevHash := GenesisHash
	var seq int64 = 1
	if len(chain) > 0 {
		tail := chain[len(chain)-1]
		prevHash = tail.Hash
		seq = tail.Seq + 1
	}

	e := Event{
		RunID:     runID,
		Seq:       seq,
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Payload:   raw,
		PrevHash:  prevHash,
	}
	e.Hash, err = computeHash(e)
	if err != nil {
		return Event{}, err
	}

	s.runs[runID] = append(chain, e)
	return e, nil
}

func (s *MemoryStore) List(ctx context.Context, runID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	out := make([]Event, len(chain))
	copy(out, chain)
	return out, nil
}

func (s *MemoryStore) Verify(ctx context.Context, runID string) error {
	events, err := s.List(ctx, runID)
	if err != nil {
		return err
	}
	return Verify(events)
}
