package call

import "errors"

var (
	// ErrNotFound means the session id is not in the live map. Terminal
	// operations on an already-removed session return this rather than
	// failing hard, which makes double hangups idempotent.
	ErrNotFound = errors.New("call not found")

	// ErrInvalidTransition means the requested event is illegal from the
	// session's current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidState means audio was posted to a session that has no open
	// recording buffer.
	ErrInvalidState = errors.New("call not recording")

	// ErrEmptyFrame means an audio frame carried no bytes.
	ErrEmptyFrame = errors.New("empty audio frame")

	// ErrDuplicateID means Create was asked to reuse a live session id.
	ErrDuplicateID = errors.New("duplicate call id")
)
