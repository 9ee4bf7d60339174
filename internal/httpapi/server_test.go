package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sebas/callhub/internal/call"
	"github.com/sebas/callhub/internal/events"
	"github.com/sebas/callhub/internal/ingest"
	"github.com/sebas/callhub/internal/recorder"
)

// passthroughTranscoder writes the captured bytes as a WAV file so recording
// downloads can be exercised without ffmpeg
type passthroughTranscoder struct{}

func (passthroughTranscoder) Encode(ctx context.Context, raw []byte, outPath string) error {
	return recorder.WriteWAV(outPath, raw)
}

type testEnv struct {
	srv *httptest.Server
	reg *call.Registry
	hub *events.Hub
	dir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	hub := events.NewHub()
	fin := recorder.NewFinalizer(dir, passthroughTranscoder{}, time.Second)
	reg := call.NewRegistry(fin, hub, 100)
	pipeline := ingest.NewPipeline(reg, hub)
	s := NewServer("127.0.0.1:0", reg, pipeline, hub, dir)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, reg: reg, hub: hub, dir: dir}
}

func (e *testEnv) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response for %s: %v", path, err)
	}
	return resp.StatusCode, out
}

func (e *testEnv) simulate(t *testing.T, number string) string {
	t.Helper()
	status, out := e.post(t, "/api/v1/calls/simulate?number="+number, nil)
	if status != http.StatusOK {
		t.Fatalf("simulate status = %d", status)
	}
	id, _ := out["call_id"].(string)
	if id == "" {
		t.Fatal("simulate returned no call_id")
	}
	return id
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	id := e.simulate(t, "5551001")

	// Answer opens the recording
	status, out := e.post(t, "/api/v1/calls/"+id+"/answer", nil)
	if status != http.StatusOK {
		t.Fatalf("answer status = %d", status)
	}
	if out["recording_started"] != true {
		t.Error("recording_started != true")
	}

	// Ingest frames from both sides
	frame := map[string]string{"audio_data": base64.StdEncoding.EncodeToString([]byte("pcm-data"))}
	for i := 0; i < 10; i++ {
		status, out = e.post(t, "/api/v1/calls/"+id+"/audio", frame)
		if status != http.StatusOK {
			t.Fatalf("audio status = %d (%v)", status, out)
		}
	}
	for i := 0; i < 5; i++ {
		status, out = e.post(t, "/api/v1/calls/"+id+"/admin-audio", frame)
		if status != http.StatusOK {
			t.Fatalf("admin-audio status = %d (%v)", status, out)
		}
	}
	if got := out["frames_count"].(float64); got != 15 {
		t.Errorf("frames_count = %v, want 15", got)
	}

	// Hangup finalizes and evicts
	status, out = e.post(t, "/api/v1/calls/"+id+"/hangup", nil)
	if status != http.StatusOK {
		t.Fatalf("hangup status = %d", status)
	}
	if out["success"] != true {
		t.Error("hangup success != true")
	}
	if out["recording_saved"] != true {
		t.Error("recording_saved != true")
	}
	if out["duration"].(float64) < 0 {
		t.Errorf("duration = %v, want >= 0", out["duration"])
	}

	if _, ok := e.reg.Get(id); ok {
		t.Error("call still live after hangup")
	}

	// The artifact can be downloaded afterwards
	resp, err := http.Get(e.srv.URL + "/api/v1/calls/" + id + "/recording")
	if err != nil {
		t.Fatalf("GET recording failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("recording status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "audio/wav") {
		t.Errorf("content type = %q, want audio/wav", ct)
	}
}

func TestHangupUnknownCall(t *testing.T) {
	e := newTestEnv(t)
	status, out := e.post(t, "/api/v1/calls/ghost/hangup", nil)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if out["success"] != false {
		t.Error("success != false")
	}
	if out["error"] != "call not found" {
		t.Errorf("error = %v, want %q", out["error"], "call not found")
	}
}

func TestDoubleHangupIdempotent(t *testing.T) {
	e := newTestEnv(t)
	id := e.simulate(t, "5551001")
	e.post(t, "/api/v1/calls/"+id+"/answer", nil)

	status, _ := e.post(t, "/api/v1/calls/"+id+"/hangup", nil)
	if status != http.StatusOK {
		t.Fatalf("first hangup status = %d", status)
	}
	status, out := e.post(t, "/api/v1/calls/"+id+"/hangup", nil)
	if status != http.StatusNotFound {
		t.Errorf("second hangup status = %d, want 404", status)
	}
	if out["error"] != "call not found" {
		t.Errorf("second hangup error = %v", out["error"])
	}
}

func TestRejectBeforeAnswer(t *testing.T) {
	e := newTestEnv(t)
	id := e.simulate(t, "5551001")

	status, out := e.post(t, "/api/v1/calls/"+id+"/reject", map[string]string{"reason": "busy"})
	if status != http.StatusOK {
		t.Fatalf("reject status = %d", status)
	}
	if out["status"] != "rejected" {
		t.Errorf("status = %v, want rejected", out["status"])
	}
	if out["recording_saved"] != false {
		t.Error("recording_saved = true for unanswered call")
	}
	if out["reason"] != "busy" {
		t.Errorf("reason = %v, want busy", out["reason"])
	}

	// No artifact is required for a call that never recorded
	if _, err := os.Stat(recorder.ArtifactPath(e.dir, id)); err == nil {
		t.Error("artifact exists for a rejected, never-answered call")
	}
}

func TestAudioToNonRecordingCall(t *testing.T) {
	e := newTestEnv(t)
	id := e.simulate(t, "5551001")

	frame := map[string]string{"audio_data": base64.StdEncoding.EncodeToString([]byte("x"))}
	status, out := e.post(t, "/api/v1/calls/"+id+"/audio", frame)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if out["success"] != false {
		t.Error("success != false")
	}
}

func TestInvalidAudioPayload(t *testing.T) {
	e := newTestEnv(t)
	id := e.simulate(t, "5551001")
	e.post(t, "/api/v1/calls/"+id+"/answer", nil)

	status, out := e.post(t, "/api/v1/calls/"+id+"/audio", map[string]string{"audio_data": "%%%not-base64%%%"})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if out["error"] != "invalid audio data format" {
		t.Errorf("error = %v", out["error"])
	}
}

func TestTransferFromRinging(t *testing.T) {
	e := newTestEnv(t)
	id := e.simulate(t, "5551001")

	status, out := e.post(t, "/api/v1/calls/"+id+"/transfer", map[string]string{"target": "1412"})
	if status != http.StatusOK {
		t.Fatalf("transfer status = %d", status)
	}
	if out["status"] != "transferred" {
		t.Errorf("status = %v, want transferred", out["status"])
	}
}

func TestListCalls(t *testing.T) {
	e := newTestEnv(t)
	e.simulate(t, "5551001")
	e.simulate(t, "5551002")

	resp, err := http.Get(e.srv.URL + "/api/v1/calls")
	if err != nil {
		t.Fatalf("GET calls failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got := out["active_calls_count"].(float64); got != 2 {
		t.Errorf("active_calls_count = %v, want 2", got)
	}
}
