package hub

import (
	"sync"

	"github.com/google/uuid"
)

const (
	// DefaultBufferSize is the per-subscriber channel capacity (§4.6).
	DefaultBufferSize = 64
	// DefaultEvictAfter is the number of consecutive dropped sends after
	// which a subscriber is unsubscribed and its channel closed.
	DefaultEvictAfter = 8
)

// Hub fans out Messages to per-run_id subscribers.
type Hub struct {
	bufferSize int
	evictAfter int

	mu    sync.RWMutex
	topic map[string]map[string]*subscriber // run_id -> subscriber_id -> subscriber
}

// New returns a Hub using the §4.6 defaults. bufferSize/evictAfter of 0
// fall back to DefaultBufferSize/DefaultEvictAfter.
func New(bufferSize, evictAfter int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if evictAfter <= 0 {
		evictAfter = DefaultEvictAfter
	}
	return &Hub{
		bufferSize: bufferSize,
		evictAfter: evictAfter,
		topic:      make(map[string]map[string]*subscriber),
	}
}

// subscriber is one registered listener on a run_id topic.
type subscriber struct {
	id string
	ch chan Message

	mu              sync.Mutex // serializes concurrent Publish calls against this subscriber
	consecutiveDrops int
}

// Subscription is returned from Subscribe; C delivers messages, Unsubscribe
// detaches and closes C.
type Subscription struct {
	ID          string
	C           <-chan Message
	Unsubscribe func()
}

// Subscribe registers a new listener on runID's topic. Registration is O(1):
// a single write-locked map insert.
func (h *Hub) Subscribe(runID string) Subscription {
	sub := &subscriber{
		id: uuid.New().String(),
		ch: make(chan Message, h.bufferSize),
	}

	h.mu.Lock()
	if h.topic[runID] == nil {
		h.topic[runID] = make(map[string]*subscriber)
	}
	h.topic[runID][sub.id] = sub
	h.mu.Unlock()

	return Subscription{
		ID: sub.id,
		C:  sub.ch,
		Unsubscribe: func() {
			h.unsubscribe(runID, sub.id)
		},
	}
}

// unsubscribe removes sub.id from runID's topic and closes its channel. O(1).
func (h *Hub) unsubscribe(runID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topic[runID]
	if !ok {
		return
	}
	sub, ok := subs[subID]
	if !ok {
		return
	}
	delete(subs, subID)
	if len(subs) == 0 {
		delete(h.topic, runID)
	}
	close(sub.ch)
}

// SubscriberCount returns the number of live subscribers on runID's topic.
func (h *Hub) SubscriberCount(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topic[runID])
}

// Publish fans msg out to every subscriber on runID's topic. The subscriber
// snapshot is taken under a read lock and released before any channel send,
// so one slow consumer never blocks Publish, Subscribe, or Unsubscribe for
// anyone else — mirroring ConnectionManager.Broadcast's snapshot-then-send
// pattern.
func (h *Hub) Publish(runID string, msg Message) {
	h.mu.RLock()
	subs := h.topic[runID]
	snapshot := make([]*subscriber, 0, len(subs))
	for _, s := range subs {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		if s.deliver(msg, h.evictAfter) {
			h.unsubscribe(runID, s.id)
		}
	}
}

// deliver attempts a non-blocking send. If the buffer is full it drops the
// oldest queued message to make room (drop-oldest backpressure) and counts
// the drop; evicted reports whether this subscriber has now reached
// evictAfter consecutive drops and should be removed.
func (s *subscriber) deliver(msg Message, evictAfter int) (evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.ch <- msg:
		s.consecutiveDrops = 0
		return false
	default:
	}

	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- msg:
	default:
	}
	s.consecutiveDrops++
	return s.consecutiveDrops >= evictAfter
}

// CloseRun evicts every subscriber on runID's topic, e.g. once a run
// completes and no further events will be published to it.
func (h *Hub) CloseRun(runID string) {
	h.mu.Lock()
	subs := h.topic[runID]
	delete(h.topic, runID)
	h.mu.Unlock()

	for _, s := range subs {
		close(s.ch)
	}
}
