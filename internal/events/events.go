package events

import (
	"time"

	"github.com/google/uuid"
)

// Event names mirror the live wire surface consumed by the phone view and
// the dashboard.
const (
	NewCall          = "new_call"
	CallUpdate       = "call_update"
	CallAnswered     = "call_answered"
	CallStatusUpdate = "call_status_update"
	CallRejected     = "call_rejected"
	CallTransferred  = "call_transferred"
	CallEnded        = "call_ended"
	CallerAudio      = "caller_audio_received"
	AdminAudio       = "admin_audio_received"
	PhoneHangup      = "call_hangup_from_phone"
)

// Room naming. Every call has its own room joined by the two parties' live
// views; the general room carries lifecycle updates for dashboard observers.
const RoomGeneral = "general"

// CallRoom returns the per-call room name.
// Example: CallRoom("abc-123") => "call_abc-123"
func CallRoom(callID string) string {
	return "call_" + callID
}

// Event is one fan-out message. Payload must be JSON-marshalable since
// observer transports serialize events on the way out.
type Event struct {
	EventID   string    `json:"event_id"`
	Name      string    `json:"event"`
	CallID    string    `json:"call_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New creates an event with id and timestamp populated
func New(name, callID string, payload any) Event {
	return Event{
		EventID:   uuid.New().String(),
		Name:      name,
		CallID:    callID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// StatusPayload carries a lifecycle change
type StatusPayload struct {
	CallID    string `json:"call_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Recording bool   `json:"recording,omitempty"`
}

// AudioPayload carries one relayed audio frame, base64-encoded
type AudioPayload struct {
	CallID    string `json:"call_id"`
	AudioData string `json:"audio_data"`
	Source    string `json:"source"`
}
