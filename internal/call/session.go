package call

import (
	"sync"
	"time"

	"github.com/sebas/callhub/internal/recorder"
)

// CallSession is the authoritative record of one in-progress call. It is
// owned exclusively by the Registry; other components refer to it by id and
// read state through snapshots. All mutable fields are guarded by mu.
type CallSession struct {
	ID         string
	CallerID   string
	CallerName string
	Extension  string
	Channel    string
	Direction  Direction
	Source     Source
	// SSRC is the gateway's RTP source id for phone-side audio, zero when
	// the call has no RTP leg
	SSRC uint32

	mu           sync.Mutex
	status       Status
	startTime    time.Time
	answeredTime time.Time
	endTime      time.Time
	duration     int

	recording     bool
	recordingPath string
	buffer        *recorder.Buffer
	callerRelay   *recorder.RelayQueue
	adminRelay    *recorder.RelayQueue
}

// Info is a read-only snapshot of a session, safe to hand out to API
// handlers and event payloads
type Info struct {
	ID            string    `json:"call_id"`
	CallerID      string    `json:"caller_id"`
	CallerName    string    `json:"caller_name"`
	Extension     string    `json:"extension,omitempty"`
	Channel       string    `json:"channel,omitempty"`
	Direction     Direction `json:"direction"`
	Source        Source    `json:"source"`
	SSRC          uint32    `json:"rtp_ssrc,omitempty"`
	Status        string    `json:"status"`
	StartTime     time.Time `json:"start_time"`
	AnsweredTime  time.Time `json:"answered_time,omitzero"`
	EndTime       time.Time `json:"end_time,omitzero"`
	Duration      int       `json:"duration"`
	Recording     bool      `json:"recording"`
	RecordingPath string    `json:"recording_path,omitempty"`
}

// snapshot copies the session state. Caller must hold s.mu.
func (s *CallSession) snapshot() Info {
	return Info{
		ID:            s.ID,
		CallerID:      s.CallerID,
		CallerName:    s.CallerName,
		Extension:     s.Extension,
		Channel:       s.Channel,
		Direction:     s.Direction,
		Source:        s.Source,
		SSRC:          s.SSRC,
		Status:        s.status.String(),
		StartTime:     s.startTime,
		AnsweredTime:  s.answeredTime,
		EndTime:       s.endTime,
		Duration:      s.duration,
		Recording:     s.recording,
		RecordingPath: s.recordingPath,
	}
}

// openRecording creates the frame log and relay queues. Caller must hold
// s.mu. A session never has more than one open buffer; calling this while
// one exists only flips the recording flag back on.
func (s *CallSession) openRecording(relayCapacity int) {
	if s.buffer == nil {
		s.buffer = recorder.NewBuffer()
		s.callerRelay = recorder.NewRelayQueue(relayCapacity)
		s.adminRelay = recorder.NewRelayQueue(relayCapacity)
	}
	s.recording = true
}

// detachRecording closes the recording and returns the frame log for
// finalization, or nil if none was open. Caller must hold s.mu.
func (s *CallSession) detachRecording() *recorder.Buffer {
	buf := s.buffer
	s.buffer = nil
	s.callerRelay = nil
	s.adminRelay = nil
	s.recording = false
	return buf
}

// relayFor returns the bounded relay queue for one side. Caller must hold s.mu.
func (s *CallSession) relayFor(side Side) *recorder.RelayQueue {
	if side == SideAdmin {
		return s.adminRelay
	}
	return s.callerRelay
}
