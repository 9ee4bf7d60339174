package recorder

// DefaultRelayCapacity bounds how many recent frames a relay queue retains.
const DefaultRelayCapacity = 100

// RelayQueue holds the most recent frames for one side of a call, used only
// for real-time relay to the other party. Unlike the recording Buffer it is
// bounded: pushing beyond capacity evicts the oldest frame. Not safe for
// concurrent use; the owning session's lock guards it.
type RelayQueue struct {
	items    [][]byte
	capacity int
}

// NewRelayQueue creates a queue with the given capacity.
// A capacity of zero or less falls back to DefaultRelayCapacity.
func NewRelayQueue(capacity int) *RelayQueue {
	if capacity <= 0 {
		capacity = DefaultRelayCapacity
	}
	return &RelayQueue{capacity: capacity}
}

// Push appends a frame, evicting the oldest when full
func (q *RelayQueue) Push(data []byte) {
	if len(q.items) >= q.capacity {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
	}
	q.items = append(q.items, data)
}

// Len returns the number of buffered frames
func (q *RelayQueue) Len() int {
	return len(q.items)
}

// Items returns a snapshot of the buffered frames, oldest first
func (q *RelayQueue) Items() [][]byte {
	out := make([][]byte, len(q.items))
	copy(out, q.items)
	return out
}
