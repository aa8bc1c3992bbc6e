package agent

import (
	"github.com/antigravity-dev/robogovern/pkg/policy"
	"github.com/antigravity-dev/robogovern/pkg/worldmodel"
)

// MemoryEntry pairs a proposed candidate with the governance decision it
// received.
type MemoryEntry struct {
	Proposal worldmodel.ActionProposal
	Decision policy.GovernanceDecision
}

// MemorySummary is the agent loop's view of its own recent history.
type MemorySummary struct {
	TotalEntries int `json:"total_entries"`
	Approved     int `json:"approved"`
	Denied       int `json:"denied"`
	DenialCount  int `json:"denial_count"` // consecutive denials ending at the most recent entry
}

// RingMemory is a fixed-capacity ring buffer of the last K entries, per
// §4.4.b.
type RingMemory struct {
	capacity int
	entries  []MemoryEntry
	next     int
	full     bool
}

// DefaultMemoryCapacity is K from §4.4.b.
const DefaultMemoryCapacity = 10

// NewRingMemory returns an empty ring buffer with the given capacity.
func NewRingMemory(capacity int) *RingMemory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &RingMemory{capacity: capacity, entries: make([]MemoryEntry, capacity)}
}

// Record appends an entry, overwriting the oldest once the buffer is full.
func (m *RingMemory) Record(e MemoryEntry) {
	m.entries[m.next] = e
	m.next = (m.next + 1) % m.capacity
	if m.next == 0 {
		m.full = true
	}
}

// Entries returns the buffered entries in chronological order (oldest
// first).
func (m *RingMemory) Entries() []MemoryEntry {
	if !m.full {
		out := make([]MemoryEntry, m.next)
		copy(out, m.entries[:m.next])
		return out
	}
	out := make([]MemoryEntry, m.capacity)
	copy(out, m.entries[m.next:])
	copy(out[m.capacity-m.next:], m.entries[:m.next])
	return out
}

// Summary computes the aggregate view over the buffered entries.
func (m *RingMemory) Summary() MemorySummary {
	entries := m.Entries()
	s := MemorySummary{TotalEntries: len(entries)}
	for _, e := range entries {
		switch e.Decision.Decision {
		case policy.DecisionApproved:
			s.Approved++
		case policy.DecisionDenied:
			s.Denied++
		}
	}
	// consecutive denials counting back from the most recent entry
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Decision.Decision != policy.DecisionDenied {
			break
		}
		s.DenialCount++
	}
	return s
}
