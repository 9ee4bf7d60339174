package events

import (
	"testing"
	"time"
)

func TestCallRoomNaming(t *testing.T) {
	if got := CallRoom("abc-123"); got != "call_abc-123" {
		t.Errorf("CallRoom() = %q, want call_abc-123", got)
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(CallRoom("c1"))
	defer sub.Close()

	hub.Publish(CallRoom("c1"), New(CallAnswered, "c1", nil))

	select {
	case ev := <-sub.C:
		if ev.Name != CallAnswered {
			t.Errorf("event = %q, want %q", ev.Name, CallAnswered)
		}
		if ev.CallID != "c1" {
			t.Errorf("call id = %q, want c1", ev.CallID)
		}
		if ev.EventID == "" {
			t.Error("event id not populated")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestRoomIsolation(t *testing.T) {
	hub := NewHub()
	other := hub.Subscribe(CallRoom("c2"))
	defer other.Close()

	hub.Publish(CallRoom("c1"), New(CallAnswered, "c1", nil))

	select {
	case ev := <-other.C:
		t.Fatalf("subscriber of another room received %q", ev.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLateSubscriberSeesNothing(t *testing.T) {
	hub := NewHub()
	hub.Publish(RoomGeneral, New(NewCall, "c1", nil))

	// No replay: events published before subscribing are gone
	sub := hub.Subscribe(RoomGeneral)
	defer sub.Close()

	select {
	case ev := <-sub.C:
		t.Fatalf("late subscriber received %q", ev.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(RoomGeneral)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		// Publish far more than the subscriber buffer without draining
		for i := 0; i < defaultSubscriberBuffer*3; i++ {
			hub.Publish(RoomGeneral, New(CallUpdate, "c1", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestUnsubscribeRemovesRoom(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(CallRoom("c1"))

	if hub.SubscriberCount(CallRoom("c1")) != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", hub.SubscriberCount(CallRoom("c1")))
	}

	sub.Close()
	if hub.SubscriberCount(CallRoom("c1")) != 0 {
		t.Errorf("SubscriberCount after close = %d, want 0", hub.SubscriberCount(CallRoom("c1")))
	}
	if hub.RoomCount() != 0 {
		t.Errorf("RoomCount after close = %d, want 0", hub.RoomCount())
	}

	// Closing twice is harmless
	sub.Close()

	// Channel is closed after Close
	if _, ok := <-sub.C; ok {
		t.Error("subscriber channel still open after Close")
	}
}
