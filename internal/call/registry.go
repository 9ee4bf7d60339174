package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sebas/callhub/internal/events"
	"github.com/sebas/callhub/internal/recorder"
)

// RecordingFinalizer converts a detached frame log into a durable artifact.
// Implemented by recorder.Finalizer; tests substitute fakes.
type RecordingFinalizer interface {
	Finalize(ctx context.Context, callID string, buf *recorder.Buffer) recorder.Artifact
}

// AudioSourceBinder routes a gateway audio source to a live call for the
// answered phase of its lifecycle. Implemented by rtpingest.Bridge.
type AudioSourceBinder interface {
	Register(ssrc uint32, callID string)
	Unregister(ssrc uint32)
}

// Registry owns the live call map and is the single writer of session state.
// Every mutation goes through a registry method under the session's lock, so
// a lifecycle transition and a concurrent frame append can never interleave
// into a torn write.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*CallSession

	finalizer     RecordingFinalizer
	hub           *events.Hub
	binder        AudioSourceBinder
	relayCapacity int
}

// CreateParams carries the provenance of a new session
type CreateParams struct {
	// ID is the gateway-assigned unique call token. Left empty, the
	// registry generates one.
	ID         string
	CallerID   string
	CallerName string
	Extension  string
	Channel    string
	Direction  Direction
	Source     Source
	// SSRC is the gateway's RTP source for phone-side audio, zero when the
	// call has none
	SSRC uint32
}

// FrameStats reports ingest counters for observability. Frames and
// TotalBytes cover the whole recording buffer, both sides included.
type FrameStats struct {
	Frames     int `json:"frames_count"`
	TotalBytes int `json:"total_bytes"`
	SideFrames int `json:"side_frames"`
}

// TerminateResult is the payload returned from a terminal transition
type TerminateResult struct {
	CallID         string
	Status         Status
	Reason         string
	Duration       int
	RecordingSaved bool
	RecordingPath  string
	UsedFallback   bool
}

// NewRegistry creates an empty registry. hub may be nil, in which case no
// events are published (useful in tests that only exercise state).
func NewRegistry(finalizer RecordingFinalizer, hub *events.Hub, relayCapacity int) *Registry {
	return &Registry{
		calls:         make(map[string]*CallSession),
		finalizer:     finalizer,
		hub:           hub,
		relayCapacity: relayCapacity,
	}
}

// BindAudioSources attaches the binder that maps gateway audio sources to
// answered calls. Must be called before the first Answer; typically once at
// startup when the RTP bridge is enabled.
func (r *Registry) BindAudioSources(b AudioSourceBinder) {
	r.binder = b
}

// Create allocates a new session in ringing state and inserts it into the
// live map. It fails only on id collision.
func (r *Registry) Create(p CreateParams) (Info, error) {
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}

	sess := &CallSession{
		ID:         id,
		CallerID:   p.CallerID,
		CallerName: p.CallerName,
		Extension:  p.Extension,
		Channel:    p.Channel,
		Direction:  p.Direction,
		Source:     p.Source,
		SSRC:       p.SSRC,
		status:     StatusRinging,
		startTime:  time.Now(),
	}

	r.mu.Lock()
	if _, exists := r.calls[id]; exists {
		r.mu.Unlock()
		return Info{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.calls[id] = sess
	r.mu.Unlock()

	info := sess.snapshot()
	slog.Info("[Registry] Call created",
		"call_id", id,
		"caller", p.CallerID,
		"extension", p.Extension,
		"source", p.Source)

	r.publish(events.RoomGeneral, events.New(events.NewCall, id, info))
	r.publish(events.RoomGeneral, events.New(events.CallUpdate, id, info))
	return info, nil
}

// Get returns a read-only snapshot of a live session
func (r *Registry) Get(id string) (Info, bool) {
	sess, ok := r.lookup(id)
	if !ok {
		return Info{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), true
}

// Answer moves a ringing session to answered and opens its recording.
// Recording starts automatically so the artifact covers the whole
// conversation.
func (r *Registry) Answer(id string) (Info, error) {
	sess, ok := r.lookup(id)
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sess.mu.Lock()
	if sess.status.IsTerminal() {
		sess.mu.Unlock()
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !sess.status.CanTransitionTo(StatusAnswered) {
		status := sess.status
		sess.mu.Unlock()
		return Info{}, fmt.Errorf("%w: answer from %s", ErrInvalidTransition, status)
	}
	sess.status = StatusAnswered
	sess.answeredTime = time.Now()
	sess.openRecording(r.relayCapacity)
	info := sess.snapshot()
	sess.mu.Unlock()

	if r.binder != nil && sess.SSRC != 0 {
		r.binder.Register(sess.SSRC, id)
	}

	slog.Info("[Registry] Call answered", "call_id", id, "recording", true)

	r.publish(events.CallRoom(id), events.New(events.CallAnswered, id, events.StatusPayload{
		CallID:    id,
		Status:    StatusAnswered.String(),
		Recording: true,
	}))
	r.publish(events.RoomGeneral, events.New(events.CallStatusUpdate, id, events.StatusPayload{
		CallID: id,
		Status: StatusAnswered.String(),
	}))
	r.publish(events.RoomGeneral, events.New(events.CallUpdate, id, info))
	return info, nil
}

// StartRecording reopens the frame log on an answered session. Answering
// already starts one, so this only matters after a manual StopRecording.
func (r *Registry) StartRecording(id string) (Info, error) {
	sess, ok := r.lookup(id)
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status != StatusAnswered {
		return Info{}, fmt.Errorf("%w: start recording from %s", ErrInvalidTransition, sess.status)
	}
	sess.openRecording(r.relayCapacity)
	return sess.snapshot(), nil
}

// StopRecording closes and finalizes the frame log without ending the call.
// The session lock is released for the duration of the transcoder run.
func (r *Registry) StopRecording(ctx context.Context, id string) (recorder.Artifact, error) {
	sess, ok := r.lookup(id)
	if !ok {
		return recorder.Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sess.mu.Lock()
	if sess.status != StatusAnswered || sess.buffer == nil {
		sess.mu.Unlock()
		return recorder.Artifact{}, fmt.Errorf("%w: %s", ErrInvalidState, id)
	}
	buf := sess.detachRecording()
	sess.mu.Unlock()

	art := r.finalizer.Finalize(ctx, id, buf)

	sess.mu.Lock()
	sess.recordingPath = art.Path
	info := sess.snapshot()
	sess.mu.Unlock()

	r.publish(events.RoomGeneral, events.New(events.CallUpdate, id, info))
	return art, nil
}

// AppendFrame stores one audio frame for a side. The session must be
// answered with an open recording; anything else is rejected so a frame can
// never land in a removed or torn-down buffer.
func (r *Registry) AppendFrame(id string, side Side, data []byte) (FrameStats, error) {
	if len(data) == 0 {
		return FrameStats{}, ErrEmptyFrame
	}

	sess, ok := r.lookup(id)
	if !ok {
		return FrameStats{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status != StatusAnswered || !sess.recording || sess.buffer == nil {
		return FrameStats{}, fmt.Errorf("%w: %s", ErrInvalidState, id)
	}

	sess.buffer.Append(string(side), data)
	sess.relayFor(side).Push(data)

	return FrameStats{
		Frames:     sess.buffer.FrameCount(),
		TotalBytes: sess.buffer.ByteCount(),
		SideFrames: sess.buffer.FrameCountFor(string(side)),
	}, nil
}

// Terminate drives a session into a terminal status, finalizes any open
// recording, and evicts the entry from the live map. It is idempotent: a
// second terminal call on the same id gets ErrNotFound and changes nothing.
//
// The finalizer runs with no locks held; only the final path assignment
// reacquires the session lock.
func (r *Registry) Terminate(ctx context.Context, id string, to Status, reason string) (TerminateResult, error) {
	if !to.IsTerminal() {
		return TerminateResult{}, fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, to)
	}

	sess, ok := r.lookup(id)
	if !ok {
		return TerminateResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sess.mu.Lock()
	if sess.status.IsTerminal() {
		// Lost the race with another terminal transition; the entry is
		// already on its way out of the map.
		sess.mu.Unlock()
		return TerminateResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !sess.status.CanTransitionTo(to) {
		status := sess.status
		sess.mu.Unlock()
		return TerminateResult{}, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, to, status)
	}

	now := time.Now()
	base := sess.answeredTime
	if base.IsZero() {
		base = sess.startTime
	}
	duration := int(now.Sub(base).Seconds())
	if duration < 0 {
		duration = 0
	}

	sess.status = to
	sess.endTime = now
	sess.duration = duration
	buf := sess.detachRecording()
	sess.mu.Unlock()

	result := TerminateResult{
		CallID:   id,
		Status:   to,
		Reason:   reason,
		Duration: duration,
	}

	if buf != nil {
		art := r.finalizer.Finalize(ctx, id, buf)
		result.RecordingSaved = true
		result.RecordingPath = art.Path
		result.UsedFallback = art.UsedFallback

		sess.mu.Lock()
		sess.recordingPath = art.Path
		sess.mu.Unlock()
	}

	r.mu.Lock()
	delete(r.calls, id)
	r.mu.Unlock()

	if r.binder != nil && sess.SSRC != 0 {
		r.binder.Unregister(sess.SSRC)
	}

	sess.mu.Lock()
	info := sess.snapshot()
	sess.mu.Unlock()

	slog.Info("[Registry] Call terminated",
		"call_id", id,
		"status", to,
		"reason", reason,
		"duration", duration,
		"recording_saved", result.RecordingSaved)

	r.publish(events.CallRoom(id), events.New(terminalEventName(to), id, events.StatusPayload{
		CallID:   id,
		Status:   to.String(),
		Reason:   reason,
		Duration: duration,
	}))
	r.publish(events.RoomGeneral, events.New(events.CallStatusUpdate, id, events.StatusPayload{
		CallID:   id,
		Status:   to.String(),
		Reason:   reason,
		Duration: duration,
	}))
	r.publish(events.RoomGeneral, events.New(events.CallUpdate, id, info))
	return result, nil
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}

// Snapshots returns read-only copies of every live session
func (r *Registry) Snapshots() []Info {
	r.mu.RLock()
	sessions := make([]*CallSession, 0, len(r.calls))
	for _, sess := range r.calls {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		infos = append(infos, sess.snapshot())
		sess.mu.Unlock()
	}
	return infos
}

// CloseAll terminates every live session. Used on shutdown so open
// recordings still get finalized.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.calls))
	for id := range r.calls {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		if _, err := r.Terminate(ctx, id, StatusEnded, "shutdown"); err != nil {
			slog.Warn("[Registry] Failed to terminate on shutdown", "call_id", id, "error", err)
		}
	}
}

// terminalEventName picks the per-call-room event for a terminal status, so
// observers can tell a rejection or transfer apart from a plain hangup
func terminalEventName(to Status) string {
	switch to {
	case StatusRejected:
		return events.CallRejected
	case StatusTransferred:
		return events.CallTransferred
	}
	return events.CallEnded
}

func (r *Registry) lookup(id string) (*CallSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.calls[id]
	return sess, ok
}

func (r *Registry) publish(room string, ev events.Event) {
	if r.hub != nil {
		r.hub.Publish(room, ev)
	}
}
