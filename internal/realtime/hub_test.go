package realtime

import (
	"sync"
	"testing"
)

// fakeSub records events delivered to it.
type fakeSub struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeSub) Send(event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeSub) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestHubFanOut(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	a, b, c := &fakeSub{}, &fakeSub{}, &fakeSub{}

	h.Subscribe("conv-1", a)
	h.Subscribe("conv-1", b)
	h.Subscribe("conv-2", c)

	h.Publish("conv-1", "message_chunk", nil)
	h.Publish("conv-1", "message_chunk", nil)

	if a.count() != 2 || b.count() != 2 {
		t.Errorf("subscriber counts = %d, %d; want 2, 2", a.count(), b.count())
	}
	if c.count() != 0 {
		t.Errorf("other-room subscriber received %d events, want 0", c.count())
	}
}

func TestHubPublishEmptyRoom(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	// Must not panic or block.
	h.Publish("nobody-home", "message_chunk", nil)
}

func TestHubUnsubscribe(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	a, b := &fakeSub{}, &fakeSub{}

	h.Subscribe("conv-1", a)
	h.Subscribe("conv-1", b)
	h.Unsubscribe("conv-1", a)

	h.Publish("conv-1", "message_complete", nil)

	if a.count() != 0 {
		t.Errorf("unsubscribed client received %d events, want 0", a.count())
	}
	if b.count() != 1 {
		t.Errorf("remaining client received %d events, want 1", b.count())
	}
	if got := h.RoomSize("conv-1"); got != 1 {
		t.Errorf("RoomSize = %d, want 1", got)
	}
}

func TestHubUnsubscribeAll(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	a := &fakeSub{}

	h.Subscribe("conv-1", a)
	h.Subscribe("conv-2", a)
	h.UnsubscribeAll(a)

	h.Publish("conv-1", "message_chunk", nil)
	h.Publish("conv-2", "message_chunk", nil)

	if a.count() != 0 {
		t.Errorf("disconnected client received %d events, want 0", a.count())
	}
	if h.RoomSize("conv-1") != 0 || h.RoomSize("conv-2") != 0 {
		t.Error("rooms should be empty after UnsubscribeAll")
	}
}

func TestHubSubscribeIdempotent(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	a := &fakeSub{}

	h.Subscribe("conv-1", a)
	h.Subscribe("conv-1", a)

	h.Publish("conv-1", "message_chunk", nil)

	if a.count() != 1 {
		t.Errorf("double-subscribed client received %d events, want 1", a.count())
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	t.Parallel()

	h := NewHub(nil)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := &fakeSub{}
			id := string(rune('a' + n%3))
			for range 100 {
				h.Subscribe(id, s)
				h.Publish(id, "message_chunk", nil)
				h.Unsubscribe(id, s)
			}
		}(i)
	}
	wg.Wait()
}
