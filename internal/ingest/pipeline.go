package ingest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sebas/callhub/internal/call"
	"github.com/sebas/callhub/internal/events"
)

// ErrDecode means the submitted audio payload was not valid base64
var ErrDecode = errors.New("invalid audio data format")

// Pipeline accepts audio frames posted by either party, appends them to the
// session's recording through the registry, and relays each frame to the
// opposite side's observers. Frames are stored strictly in arrival order;
// no resequencing is performed.
type Pipeline struct {
	reg *call.Registry
	hub *events.Hub
}

// NewPipeline creates an ingest pipeline over reg, relaying through hub
func NewPipeline(reg *call.Registry, hub *events.Hub) *Pipeline {
	return &Pipeline{reg: reg, hub: hub}
}

// Accept ingests one base64-encoded frame for a side
func (p *Pipeline) Accept(id string, side call.Side, audioData string) (call.FrameStats, error) {
	if audioData == "" {
		return call.FrameStats{}, call.ErrEmptyFrame
	}
	raw, err := base64.StdEncoding.DecodeString(audioData)
	if err != nil {
		return call.FrameStats{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return p.AcceptRaw(id, side, raw)
}

// AcceptRaw ingests one decoded frame for a side. Used directly by the RTP
// bridge, which never sees base64.
func (p *Pipeline) AcceptRaw(id string, side call.Side, raw []byte) (call.FrameStats, error) {
	stats, err := p.reg.AppendFrame(id, side, raw)
	if err != nil {
		return call.FrameStats{}, err
	}

	slog.Debug("[Ingest] Frame stored",
		"call_id", id,
		"side", side,
		"bytes", len(raw),
		"frames", stats.Frames)

	// Caller frames relay to the operator's view and vice versa. The
	// payload carries base64 so observers get the same encoding either way.
	name := events.CallerAudio
	if side == call.SideAdmin {
		name = events.AdminAudio
	}
	p.hub.Publish(events.CallRoom(id), events.New(name, id, events.AudioPayload{
		CallID:    id,
		AudioData: base64.StdEncoding.EncodeToString(raw),
		Source:    string(side),
	}))

	return stats, nil
}
