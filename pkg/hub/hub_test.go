package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHub_PublishDeliversToSubscriber(t *testing.T) {
	h := New(0, 0)
	sub := h.Subscribe("run-1")
	defer sub.Unsubscribe()

	h.Publish("run-1", Message{Kind: KindStatus, Data: []byte(`{}`)})

	select {
	case msg := <-sub.C:
		require.Equal(t, KindStatus, msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestHub_PublishScopedToRunID(t *testing.T) {
	h := New(0, 0)
	subA := h.Subscribe("run-a")
	subB := h.Subscribe("run-b")
	defer subA.Unsubscribe()
	defer subB.Unsubscribe()

	h.Publish("run-a", Message{Kind: KindStatus})

	select {
	case <-subA.C:
	case <-time.After(time.Second):
		t.Fatal("run-a subscriber got nothing")
	}

	select {
	case <-subB.C:
		t.Fatal("run-b subscriber should not have received run-a's message")
	default:
	}
}

func TestHub_DropOldestOnOverflow(t *testing.T) {
	h := New(2, 100) // tiny buffer, high evict threshold so we can inspect drop behavior
	sub := h.Subscribe("run-1")
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		h.Publish("run-1", Message{Kind: KindTelemetry, Data: []byte(intPayload(i))})
	}

	// buffer holds 2; oldest should have been dropped, so we expect the two
	// most recent sends (3, 4).
	first := <-sub.C
	second := <-sub.C
	require.Equal(t, intPayload(3), string(first.Data))
	require.Equal(t, intPayload(4), string(second.Data))
}

func TestHub_EvictsAfterConsecutiveDrops(t *testing.T) {
	h := New(1, 8)
	sub := h.Subscribe("run-1")
	defer sub.Unsubscribe()

	// First send fills the buffer of size 1; every subsequent send (since
	// nothing drains it) is a drop. After 8 consecutive drops the
	// subscriber is evicted.
	for i := 0; i < 9; i++ {
		h.Publish("run-1", Message{Kind: KindTelemetry})
	}

	require.Equal(t, 0, h.SubscriberCount("run-1"))

	// channel is closed on eviction; draining it returns the zero value and ok=false.
	<-sub.C
	_, ok := <-sub.C
	require.False(t, ok)
}

func TestHub_UnsubscribeIsIdempotentAndClosesChannel(t *testing.T) {
	h := New(0, 0)
	sub := h.Subscribe("run-1")

	sub.Unsubscribe()
	sub.Unsubscribe() // must not panic

	_, ok := <-sub.C
	require.False(t, ok)
	require.Equal(t, 0, h.SubscriberCount("run-1"))
}

func TestHub_CloseRunEvictsAllSubscribers(t *testing.T) {
	h := New(0, 0)
	s1 := h.Subscribe("run-1")
	s2 := h.Subscribe("run-1")

	h.CloseRun("run-1")

	_, ok := <-s1.C
	require.False(t, ok)
	_, ok = <-s2.C
	require.False(t, ok)
	require.Equal(t, 0, h.SubscriberCount("run-1"))
}

func intPayload(i int) string {
	digits := "0123456789"
	return `"` + string(digits[i]) + `"`
}
