package call

import "fmt"

// Status represents the lifecycle state of a call session
type Status int

const (
	// StatusRinging is the initial state when a session is created
	StatusRinging Status = iota
	// StatusAnswered is after the counterparty picks up
	StatusAnswered
	// StatusRejected is the final state when a ringing call is declined
	StatusRejected
	// StatusTransferred is the final state after handing the call off
	StatusTransferred
	// StatusEnded is the final state after a hangup from either side
	StatusEnded
	// StatusCompleted is the final state when the operator marks the call done
	StatusCompleted
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case StatusRinging:
		return "ringing"
	case StatusAnswered:
		return "answered"
	case StatusRejected:
		return "rejected"
	case StatusTransferred:
		return "transferred"
	case StatusEnded:
		return "ended"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// validTransitions defines which status transitions are allowed.
// A hangup (StatusEnded) is reachable from any non-terminal status because
// the phone side can drop the line before the call is ever answered.
// Transfer is likewise accepted from any non-terminal status.
var validTransitions = map[Status][]Status{
	StatusRinging:     {StatusAnswered, StatusRejected, StatusTransferred, StatusEnded},
	StatusAnswered:    {StatusEnded, StatusTransferred, StatusCompleted},
	StatusRejected:    {},
	StatusTransferred: {},
	StatusEnded:       {},
	StatusCompleted:   {},
}

// CanTransitionTo checks if a transition from current status to next is valid
func (s Status) CanTransitionTo(next Status) bool {
	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this is a terminal status
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusTransferred, StatusEnded, StatusCompleted:
		return true
	}
	return false
}

// Direction indicates which way a call was placed
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Source tags where a session originated. Informational only, it does not
// affect transition rules.
type Source string

const (
	SourceGateway   Source = "gateway"
	SourceSimulator Source = "simulator"
)

// Side identifies which participant submitted an audio frame
type Side string

const (
	// SideCaller is the remote phone party
	SideCaller Side = "caller"
	// SideAdmin is the operator answering the call
	SideAdmin Side = "admin"
)
