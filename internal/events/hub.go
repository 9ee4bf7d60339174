package events

import (
	"log/slog"
	"sync"
)

// defaultSubscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls this far behind starts losing events.
const defaultSubscriberBuffer = 64

// Subscriber receives events for one room on C until Close is called.
type Subscriber struct {
	// C delivers events in publish order. Delivery is best-effort: events
	// published while the channel is full are dropped for this subscriber.
	C    <-chan Event
	room string
	ch   chan Event
	hub  *Hub
	once sync.Once
}

// Room returns the room this subscriber is attached to
func (s *Subscriber) Room() string {
	return s.room
}

// Close detaches the subscriber from the hub and closes C
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.ch)
	})
}

// Hub fans events out to room subscribers. Publishing is fire-and-forget:
// there is no acknowledgment, no backlog, and a subscriber that joins after
// an event was published never sees it.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe attaches a new subscriber to room
func (h *Hub) Subscribe(room string) *Subscriber {
	ch := make(chan Event, defaultSubscriberBuffer)
	sub := &Subscriber{C: ch, ch: ch, room: room, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Subscriber]struct{})
	}
	h.rooms[room][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[sub.room]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.rooms, sub.room)
		}
	}
}

// Publish delivers ev to every current subscriber of room. It never blocks;
// subscribers with a full channel miss the event.
func (h *Hub) Publish(room string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.rooms[room] {
		select {
		case sub.ch <- ev:
		default:
			slog.Debug("[Hub] Dropped event for slow subscriber", "room", room, "event", ev.Name)
		}
	}
}

// SubscriberCount returns how many subscribers a room currently has
func (h *Hub) SubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomCount returns the number of rooms with at least one subscriber
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
