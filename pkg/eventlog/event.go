// Package eventlog implements the per-run append-only, hash-chained event
// store (C2). Every event links to its predecessor by SHA-256 hash over its
// canonical JSON encoding, so List's output can be independently re-verified
// by Verify without trusting the store.
package eventlog

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// GenesisHash is prev_hash for the first event appended to a run: 64 hex
// zeroes, the same length as a real SHA-256 digest.
var GenesisHash = strings.Repeat("0", 64)

// Event is one hash-chained record in a run's log.
type Event struct {
	RunID     string          `json:"run_id"`
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// hashInput is the subset of Event fields that feed the hash, keyed
// explicitly so field reordering in Event never changes the chain.
type hashInput struct {
	RunID     string          `json:"run_id"`
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
}

// ErrConcurrentAppend signals that another writer appended to the same run
// between the caller's read of the chain tail and its write — the §4.2
// retry-once case.
var ErrConcurrentAppend = errors.New("eventlog: concurrent append, retry")

// ErrChainBreak signals that Verify found a hash mismatch: the stored chain
// no longer reproduces from the event contents (§7 ChainBreak).
var ErrChainBreak = errors.New("eventlog: chain break detected")

// ErrRunNotFound signals List/Verify against a run with no events. Append
// never returns it: the first Append to a run starts its chain.
var ErrRunNotFound = errors.New("eventlog: run not found")
