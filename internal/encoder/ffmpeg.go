package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/courtcut/courtcut-agent/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	waitDelay      = 2 * time.Second
)

type Config struct {
	FFmpegPath       string // path to ffmpeg; empty = look up on PATH
	ThumbnailTimeout time.Duration
	TrimTimeout      time.Duration
	Logger           *slog.Logger
}

func DefaultConfig(ffmpegPath string, logger *slog.Logger) Config {
	return Config{
		FFmpegPath:       ffmpegPath,
		ThumbnailTimeout: 30 * time.Second,
		TrimTimeout:      30 * time.Minute,
		Logger:           logger,
	}
}

// FFmpeg is the production Encoder.
type FFmpeg struct {
	cfg    Config
	bin    string
	logger *slog.Logger
}

// New resolves the ffmpeg binary. An unresolved binary is only logged here; the
// pre-flight validator reports it to the user.
func New(cfg Config) *FFmpeg {
	logger := logging.WithComponent(logging.OrDiscard(cfg.Logger), "encoder")
	bin, err := ResolveBinary(cfg.FFmpegPath)
	if err != nil {
		logger.Warn("ffmpeg not resolved", "error", err)
		bin = cfg.FFmpegPath
		if bin == "" {
			bin = binaryName()
		}
	} else {
		logger.Info("encoder initialised", "ffmpeg", bin)
	}
	return &FFmpeg{cfg: cfg, bin: bin, logger: logger}
}

func (f *FFmpeg) Path() string {
	return f.bin
}

// Thumbnail writes a single frame at `at` seconds to output, overwriting it.
func (f *FFmpeg) Thumbnail(ctx context.Context, input, output string, at float64) error {
	if f.cfg.ThumbnailTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.ThumbnailTimeout)
		defer cancel()
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(at),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		output,
	}
	return f.run(ctx, "thumbnail", output, args, nil)
}

// Trim re-encodes req.Duration seconds of req.Input starting at req.Start into
// req.Output with H.264/AAC and the moov atom up front.
func (f *FFmpeg) Trim(ctx context.Context, req TrimRequest, onProgress ProgressFunc) error {
	if req.Duration <= 0 {
		return fmt.Errorf("trim duration must be positive, got %v", req.Duration)
	}
	if f.cfg.TrimTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.TrimTimeout)
		defer cancel()
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error", "-nostats",
		"-progress", "pipe:1",
		"-ss", formatSeconds(req.Start),
		"-i", req.Input,
		"-t", formatSeconds(req.Duration),
		"-c:v", DefaultVideoCodec,
		"-preset", DefaultPreset,
		"-crf", strconv.Itoa(DefaultCRF),
		"-c:a", DefaultAudioCodec,
		"-movflags", "+faststart",
		req.Output,
	}

	parser := newProgressParser(req.Duration)
	stdout := &lineWriter{fn: func(line string) {
		if p, ok := parser.feed(line); ok && onProgress != nil {
			onProgress(p)
		}
	}}
	return f.run(ctx, "trim", req.Output, args, stdout)
}

// run is the core subprocess execution helper.
func (f *FFmpeg) run(ctx context.Context, op, outPath string, args []string, stdout *lineWriter) error {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("cannot create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.bin, args...)
	cmd.WaitDelay = waitDelay

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	if stdout != nil {
		cmd.Stdout = stdout
	}

	f.logger.Debug("executing ffmpeg", "op", op, "args", args)

	err := cmd.Run()
	if stdout != nil {
		stdout.flush()
	}
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		f.logger.Info("ffmpeg stopped", "op", op, "reason", ctxErr, "duration_ms", elapsed.Milliseconds())
		return fmt.Errorf("ffmpeg %s: %w", op, ctxErr)
	}
	if err == nil {
		f.logger.Info("ffmpeg succeeded", "op", op, "duration_ms", elapsed.Milliseconds(), "output", logging.SanitizePath(outPath))
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("ffmpeg %s: %w", op, err)
	}
	result := RunResult{
		ExitCode:   exitErr.ExitCode(),
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}
	f.logger.Warn("ffmpeg failed",
		"op", op,
		"exit_code", result.ExitCode,
		"duration_ms", elapsed.Milliseconds(),
		"stderr_tail", truncate(result.StderrTail, 512),
	)
	return &ExitError{Op: op, Result: result}
}

// ResolveBinary finds a usable ffmpeg binary: the preferred path when set,
// otherwise ffmpeg on PATH.
func ResolveBinary(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffmpeg %q not found", preferred)
	}
	p, err := exec.LookPath(binaryName())
	if err != nil {
		return "", fmt.Errorf("no ffmpeg binary found on PATH")
	}
	return p, nil
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
