package eventlog

import (
	"fmt"

	"github.com/antigravity-dev/robogovern/pkg/canon"
)

// computeHash returns the chain hash for an event given its prev_hash,
// canonicalizing (run_id, seq, ts, type, payload, prev_hash) and SHA-256'ing
// the result — the same canon.HashOf primitive C1 exposes, applied to the
// fixed hashInput shape so the chain is independent of Event's field order.
func computeHash(e Event) (string, error) {
	in := hashInput{
		RunID:     e.RunID,
		Seq:       e.Seq,
		Timestamp: e.Timestamp,
		Type:      e.Type,
		Payload:   e.Payload,
		PrevHash:  e.PrevHash,
	}
	h, err := canon.HashOf(in)
	if err != nil {
		return "", fmt.Errorf("eventlog: hash event: %w", err)
	}
	return h, nil
}

// Verify walks events in seq order and recomputes each hash from its
// contents and the previous event's hash, failing closed at the first
// mismatch or gap.
func Verify(events []Event) error {
	prev := GenesisHash
	for i, e := range events {
		if i > 0 && e.Seq != events[i-1].Seq+1 {
			return fmt.Errorf("%w: run %s seq gap at %d (want %d)", ErrChainBreak, e.RunID, e.Seq, events[i-1].Seq+1)
		}
		if e.PrevHash != prev {
			return fmt.Errorf("%w: run %s seq %d prev_hash mismatch", ErrChainBreak, e.RunID, e.Seq)
		}
		want, err := computeHash(e)
		if err != nil {
			return err
		}
		if want != e.Hash {
			return fmt.Errorf("%w: run %s seq %d hash mismatch", ErrChainBreak, e.RunID, e.Seq)
		}
		prev = e.Hash
	}
	return nil
}
