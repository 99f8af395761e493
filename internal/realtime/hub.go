package realtime

import (
	"context"
	"sync"

	"github.com/vocalhost/vocalhost/internal/observe"
)

// Subscriber receives events fanned out to a conversation room. Send must not
// block indefinitely; slow subscribers are the transport's problem, not the
// hub's.
type Subscriber interface {
	Send(event string, data any)
}

// Hub tracks which subscribers belong to which conversation room and fans
// published events out to all of them. It implements session.Publisher.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[Subscriber]struct{}
	metrics *observe.Metrics
}

// NewHub returns an empty Hub. metrics may be nil.
func NewHub(metrics *observe.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[Subscriber]struct{}),
		metrics: metrics,
	}
}

// Subscribe adds s to conversationID's room. Subscribing twice is a no-op.
func (h *Hub) Subscribe(conversationID string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[Subscriber]struct{})
		h.rooms[conversationID] = room
		if h.metrics != nil {
			h.metrics.ActiveRooms.Add(context.Background(), 1)
		}
	}
	room[s] = struct{}{}
}

// Unsubscribe removes s from conversationID's room, dropping the room when it
// empties.
func (h *Hub) Unsubscribe(conversationID string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(conversationID, s)
}

// UnsubscribeAll removes s from every room it is in. Called on disconnect.
func (h *Hub) UnsubscribeAll(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, room := range h.rooms {
		if _, ok := room[s]; ok {
			h.unsubscribeLocked(id, s)
		}
	}
}

func (h *Hub) unsubscribeLocked(conversationID string, s Subscriber) {
	room, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	if _, ok := room[s]; !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
		if h.metrics != nil {
			h.metrics.ActiveRooms.Add(context.Background(), -1)
		}
	}
}

// Publish delivers event to every subscriber of conversationID's room. A
// disconnect mid-turn does not halt delivery to the remaining subscribers.
func (h *Hub) Publish(conversationID, event string, data any) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.rooms[conversationID]))
	for s := range h.rooms[conversationID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.Send(event, data)
	}
}

// RoomSize reports the number of subscribers in conversationID's room.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}
