package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sebas/callhub/internal/call"
	"github.com/sebas/callhub/internal/events"
	"github.com/sebas/callhub/internal/ingest"
	"github.com/sebas/callhub/internal/recorder"
)

// Server exposes the lifecycle and audio surface over HTTP, plus the
// WebSocket observer endpoint. Handlers are thin: all state lives in the
// registry.
type Server struct {
	addr          string
	httpServer    *http.Server
	reg           *call.Registry
	pipeline      *ingest.Pipeline
	hub           *events.Hub
	recordingsDir string
	startTime     time.Time
}

// NewServer creates the API server
func NewServer(addr string, reg *call.Registry, pipeline *ingest.Pipeline, hub *events.Hub, recordingsDir string) *Server {
	s := &Server{
		addr:          addr,
		reg:           reg,
		pipeline:      pipeline,
		hub:           hub,
		recordingsDir: recordingsDir,
		startTime:     time.Now(),
	}

	mux := http.NewServeMux()

	// Health and stats
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	// Calls
	mux.HandleFunc("/api/v1/calls", s.handleCalls)
	mux.HandleFunc("/api/v1/calls/simulate", s.handleSimulate)
	mux.HandleFunc("/api/v1/calls/", s.handleCallAction)

	// Live observers
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

// Handler returns the underlying HTTP handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	slog.Info("[API] Starting HTTP API server", "addr", s.addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("[API] Server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// --- Health & Stats ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"active_calls":      s.reg.Count(),
		"observer_rooms":    s.hub.RoomCount(),
		"general_observers": s.hub.SubscriberCount(events.RoomGeneral),
		"uptime":            int64(time.Since(s.startTime).Seconds()),
	})
}

// --- Calls ---

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	infos := s.reg.Snapshots()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"active_calls_count": len(infos),
		"active_calls":       infos,
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	number := r.URL.Query().Get("number")
	if number == "" {
		var body struct {
			Number string `json:"number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			number = body.Number
		}
	}
	if number == "" {
		s.writeError(w, http.StatusBadRequest, "please provide a phone number")
		return
	}

	info, err := s.reg.Create(call.CreateParams{
		CallerID:   number,
		CallerName: "Caller " + number,
		Direction:  call.DirectionInbound,
		Source:     call.SourceSimulator,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "call simulated for number " + number,
		"call_id":   info.ID,
		"call_data": info,
	})
}

// handleCallAction routes /api/v1/calls/{id}/{action}
func (s *Server) handleCallAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/calls/")
	id, action, found := strings.Cut(rest, "/")
	if !found || id == "" {
		s.writeError(w, http.StatusNotFound, "call not found")
		return
	}

	if r.Method == http.MethodGet {
		if action == "recording" {
			s.serveRecording(w, r, id)
			return
		}
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch action {
	case "answer":
		s.handleAnswer(w, id)
	case "reject":
		s.handleTerminal(w, r, id, call.StatusRejected, "rejected")
	case "transfer":
		s.handleTransfer(w, r, id)
	case "hangup":
		s.handleTerminal(w, r, id, call.StatusEnded, "hangup")
	case "phone-hangup":
		s.handlePhoneHangup(w, id)
	case "done":
		s.handleTerminal(w, r, id, call.StatusCompleted, "completed")
	case "audio":
		s.handleAudio(w, r, id, call.SideCaller)
	case "admin-audio":
		s.handleAudio(w, r, id, call.SideAdmin)
	case "start-recording":
		s.handleStartRecording(w, id)
	case "stop-recording":
		s.handleStopRecording(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "unknown action")
	}
}

func (s *Server) handleAnswer(w http.ResponseWriter, id string) {
	info, err := s.reg.Answer(id)
	if err != nil {
		s.writeCallError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"message":           "call answered and recording started automatically",
		"recording_started": true,
		"recording_file":    recorder.ArtifactPath(s.recordingsDir, info.ID),
	})
}

// handleTerminal covers reject, hangup and done, which differ only in the
// target status and default reason
func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request, id string, to call.Status, defaultReason string) {
	reason := defaultReason
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Reason != "" {
		reason = body.Reason
	}

	result, err := s.reg.Terminate(r.Context(), id, to, reason)
	if err != nil {
		s.writeCallError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"status":          result.Status.String(),
		"reason":          result.Reason,
		"duration":        result.Duration,
		"recording_saved": result.RecordingSaved,
		"recording_path":  result.RecordingPath,
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Target string `json:"target"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	reason := "transferred"
	if body.Target != "" {
		reason = "transferred to " + body.Target
	}

	result, err := s.reg.Terminate(r.Context(), id, call.StatusTransferred, reason)
	if err != nil {
		s.writeCallError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"status":          result.Status.String(),
		"target":          body.Target,
		"duration":        result.Duration,
		"recording_saved": result.RecordingSaved,
	})
}

// handlePhoneHangup is the hangup alias used when the phone side drops the
// line; it works from any non-terminal status
func (s *Server) handlePhoneHangup(w http.ResponseWriter, id string) {
	result, err := s.reg.Terminate(context.Background(), id, call.StatusEnded, "phone_hangup")
	if err != nil {
		s.writeCallError(w, err)
		return
	}

	s.hub.Publish(events.CallRoom(id), events.New(events.PhoneHangup, id, events.StatusPayload{
		CallID: id,
		Status: result.Status.String(),
		Reason: result.Reason,
	}))

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"status":          result.Status.String(),
		"duration":        result.Duration,
		"recording_saved": result.RecordingSaved,
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request, id string, side call.Side) {
	var body struct {
		AudioData string `json:"audio_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stats, err := s.pipeline.Accept(id, side, body.AudioData)
	if err != nil {
		s.writeCallError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"frames_count": stats.Frames,
		"total_bytes":  stats.TotalBytes,
		"streamed":     true,
	})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, id string) {
	info, err := s.reg.StartRecording(id)
	if err != nil {
		s.writeCallError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        "recording started",
		"recording_file": recorder.ArtifactPath(s.recordingsDir, info.ID),
	})
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request, id string) {
	art, err := s.reg.StopRecording(r.Context(), id)
	if err != nil {
		s.writeCallError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"message":            "recording stopped and saved",
		"recording_path":     art.Path,
		"audio_frames_count": art.Frames,
		"duration_seconds":   art.Duration,
		"used_fallback":      art.UsedFallback,
	})
}

// serveRecording returns the WAV artifact for a call. The session is
// usually gone from the registry by then; the file is found by its
// deterministic path.
func (s *Server) serveRecording(w http.ResponseWriter, r *http.Request, id string) {
	path := recorder.ArtifactPath(s.recordingsDir, id)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "recording file not found")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

// --- Helpers ---

// writeCallError maps registry and ingest errors onto the API contract
func (s *Server) writeCallError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, call.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "call not found")
	case errors.Is(err, call.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, "invalid transition")
	case errors.Is(err, call.ErrInvalidState):
		s.writeError(w, http.StatusBadRequest, "call not recording or invalid audio data")
	case errors.Is(err, call.ErrEmptyFrame), errors.Is(err, ingest.ErrDecode):
		s.writeError(w, http.StatusBadRequest, "invalid audio data format")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[API] Failed to encode response", "error", err)
	}
}
