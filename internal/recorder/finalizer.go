package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultTranscodeTimeout bounds how long one ffmpeg invocation may run
const DefaultTranscodeTimeout = 60 * time.Second

// Artifact describes the recording file produced for one call
type Artifact struct {
	Path string
	// Duration is the estimated playback length in seconds, derived from
	// the artifact's data size
	Duration float64
	// UsedFallback is true when the artifact is synthesized silence rather
	// than transcoded call audio
	UsedFallback bool
	Frames       int
	Bytes        int
}

// Finalizer turns a call's raw frame log into a durable WAV artifact.
// Transcoder failures and timeouts never propagate: the fallback silence
// file guarantees an artifact always exists afterward.
type Finalizer struct {
	dir     string
	timeout time.Duration
	tx      Transcoder
}

// NewFinalizer creates a finalizer writing artifacts into dir
func NewFinalizer(dir string, tx Transcoder, timeout time.Duration) *Finalizer {
	if timeout <= 0 {
		timeout = DefaultTranscodeTimeout
	}
	return &Finalizer{dir: dir, timeout: timeout, tx: tx}
}

// ArtifactPath returns the deterministic artifact location for a call id
func ArtifactPath(dir, callID string) string {
	return filepath.Join(dir, fmt.Sprintf("call_%s.wav", callID))
}

// Finalize converts buf into the artifact for callID. It never fails: on any
// transcode error the artifact is at least one second of silence.
func (f *Finalizer) Finalize(ctx context.Context, callID string, buf *Buffer) Artifact {
	path := ArtifactPath(f.dir, callID)
	art := Artifact{Path: path}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		slog.Error("[Finalizer] Failed to create recordings directory", "dir", f.dir, "error", err)
	}

	if buf != nil {
		art.Frames = buf.FrameCount()
		art.Bytes = buf.ByteCount()
	}

	if buf == nil || buf.FrameCount() == 0 {
		slog.Warn("[Finalizer] No audio frames captured, writing silent file", "call_id", callID)
		f.writeFallback(callID, &art)
		return art
	}

	raw := buf.Bytes()
	slog.Info("[Finalizer] Converting captured audio",
		"call_id", callID,
		"frames", art.Frames,
		"input_bytes", len(raw))

	txCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.tx.Encode(txCtx, raw, path); err != nil {
		slog.Error("[Finalizer] Conversion failed, writing silent file", "call_id", callID, "error", err)
		f.writeFallback(callID, &art)
		return art
	}

	art.Duration = estimateDuration(path)
	slog.Info("[Finalizer] Recording saved",
		"call_id", callID,
		"path", path,
		"duration_s", fmt.Sprintf("%.2f", art.Duration))
	return art
}

// writeFallback writes the silence artifact and fills art accordingly
func (f *Finalizer) writeFallback(callID string, art *Artifact) {
	art.UsedFallback = true
	art.Duration = 1.0
	if err := WriteSilence(art.Path, 1); err != nil {
		// Out of disk or unwritable directory. The path is still reported
		// so the failure is visible to whoever reads the session record.
		slog.Error("[Finalizer] Failed to write fallback artifact", "call_id", callID, "error", err)
	}
}

// estimateDuration derives playback seconds from the artifact's size.
// The format is fixed, so the data rate is a constant 88200 bytes/second.
func estimateDuration(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	dataBytes := info.Size() - wavHeaderSize
	if dataBytes < 0 {
		dataBytes = 0
	}
	return float64(dataBytes) / float64(BytesPerSecond)
}
