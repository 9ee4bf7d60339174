package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Transcoder converts raw captured audio bytes into a playable WAV file in
// the artifact format at outPath. Implementations must respect ctx so the
// finalizer can bound the conversion time.
type Transcoder interface {
	Encode(ctx context.Context, raw []byte, outPath string) error
}

// FFmpegTranscoder shells out to ffmpeg to convert captured audio (browser
// capture arrives as a WebM/Opus stream) into the artifact WAV format.
type FFmpegTranscoder struct {
	// BinPath is the ffmpeg executable. Defaults to "ffmpeg" on PATH.
	BinPath string
}

// NewFFmpegTranscoder creates a transcoder using the given ffmpeg binary
func NewFFmpegTranscoder(binPath string) *FFmpegTranscoder {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegTranscoder{BinPath: binPath}
}

// Encode writes raw to a temp file and runs ffmpeg against it. The forced
// webm demuxer is tried first; if that fails the conversion is retried once
// letting ffmpeg detect the input format itself.
func (t *FFmpegTranscoder) Encode(ctx context.Context, raw []byte, outPath string) error {
	tmp, err := os.CreateTemp("", "capture-*.webm")
	if err != nil {
		return fmt.Errorf("failed to create temp input: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			slog.Warn("[Finalizer] Failed to clean up temp file", "path", tmpPath, "error", err)
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp input: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp input: %w", err)
	}

	if err := t.run(ctx, tmpPath, outPath, true); err != nil {
		slog.Warn("[Finalizer] Forced-format conversion failed, retrying with auto-detect", "error", err)
		if err := t.run(ctx, tmpPath, outPath, false); err != nil {
			return err
		}
	}

	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	return nil
}

func (t *FFmpegTranscoder) run(ctx context.Context, inPath, outPath string, forceFormat bool) error {
	args := []string{}
	if forceFormat {
		args = append(args, "-f", "webm")
	}
	args = append(args,
		"-i", inPath,
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "44100",
		"-y",
		outPath,
	)

	cmd := exec.CommandContext(ctx, t.BinPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg conversion timed out: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg conversion failed: %w (output: %s)", err, string(out))
	}
	return nil
}
