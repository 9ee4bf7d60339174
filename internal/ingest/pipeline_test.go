package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/sebas/callhub/internal/call"
	"github.com/sebas/callhub/internal/events"
	"github.com/sebas/callhub/internal/recorder"
)

type noopFinalizer struct{}

func (noopFinalizer) Finalize(ctx context.Context, callID string, buf *recorder.Buffer) recorder.Artifact {
	return recorder.Artifact{Path: recorder.ArtifactPath("recordings", callID)}
}

func newAnsweredCall(t *testing.T, hub *events.Hub) (*Pipeline, string) {
	t.Helper()
	reg := call.NewRegistry(noopFinalizer{}, hub, 100)
	info, err := reg.Create(call.CreateParams{CallerID: "5551001"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := reg.Answer(info.ID); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	return NewPipeline(reg, hub), info.ID
}

func TestAcceptCountsFrames(t *testing.T) {
	hub := events.NewHub()
	p, id := newAnsweredCall(t, hub)

	payload := base64.StdEncoding.EncodeToString([]byte("audio-bytes"))
	var stats call.FrameStats
	var err error
	for i := 0; i < 3; i++ {
		stats, err = p.Accept(id, call.SideCaller, payload)
		if err != nil {
			t.Fatalf("Accept %d failed: %v", i, err)
		}
	}
	if stats.Frames != 3 {
		t.Errorf("frames = %d, want 3", stats.Frames)
	}
	if stats.TotalBytes != 3*len("audio-bytes") {
		t.Errorf("total bytes = %d, want %d", stats.TotalBytes, 3*len("audio-bytes"))
	}
}

func TestAcceptRejectsBadPayloads(t *testing.T) {
	hub := events.NewHub()
	p, id := newAnsweredCall(t, hub)

	if _, err := p.Accept(id, call.SideCaller, ""); !errors.Is(err, call.ErrEmptyFrame) {
		t.Errorf("empty payload error = %v, want ErrEmptyFrame", err)
	}
	if _, err := p.Accept(id, call.SideCaller, "not-base64!!!"); !errors.Is(err, ErrDecode) {
		t.Errorf("bad base64 error = %v, want ErrDecode", err)
	}
	if _, err := p.Accept("ghost", call.SideCaller, base64.StdEncoding.EncodeToString([]byte("x"))); !errors.Is(err, call.ErrNotFound) {
		t.Errorf("unknown call error = %v, want ErrNotFound", err)
	}
}

func TestFramesRelayToOppositeSide(t *testing.T) {
	hub := events.NewHub()
	p, id := newAnsweredCall(t, hub)

	sub := hub.Subscribe(events.CallRoom(id))
	defer sub.Close()

	payload := base64.StdEncoding.EncodeToString([]byte("caller-audio"))
	if _, err := p.Accept(id, call.SideCaller, payload); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	select {
	case ev := <-sub.C:
		if ev.Name != events.CallerAudio {
			t.Errorf("event = %q, want %q", ev.Name, events.CallerAudio)
		}
		audio, ok := ev.Payload.(events.AudioPayload)
		if !ok {
			t.Fatalf("payload type = %T, want AudioPayload", ev.Payload)
		}
		if audio.AudioData != payload {
			t.Error("relayed audio does not match the submitted frame")
		}
		if audio.Source != "caller" {
			t.Errorf("source = %q, want caller", audio.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("audio event not relayed")
	}

	// Admin frames are published under the admin event name
	if _, err := p.Accept(id, call.SideAdmin, payload); err != nil {
		t.Fatalf("Accept(admin) failed: %v", err)
	}
	select {
	case ev := <-sub.C:
		if ev.Name != events.AdminAudio {
			t.Errorf("event = %q, want %q", ev.Name, events.AdminAudio)
		}
	case <-time.After(time.Second):
		t.Fatal("admin audio event not relayed")
	}
}
