// Package encoder runs the external ffmpeg binary to extract thumbnails and trim
// clips, streaming progress from ffmpeg's -progress output.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
	"time"
)

// Encoder is the contract the clip pipeline drives. Cancelling ctx kills the
// running process.
type Encoder interface {
	Thumbnail(ctx context.Context, input, output string, at float64) error
	Trim(ctx context.Context, req TrimRequest, onProgress ProgressFunc) error
	Path() string
}

// TrimRequest describes one trim: Duration seconds starting at Start, re-encoded.
type TrimRequest struct {
	Input    string
	Output   string
	Start    float64
	Duration float64
}

// Progress is one parsed ffmpeg progress block.
type Progress struct {
	Percent  float64 `json:"percent"`
	Position float64 `json:"position"`
	Speed    string  `json:"speed,omitempty"`
	Done     bool    `json:"done"`
}

type ProgressFunc func(Progress)

// Default encoding settings
const (
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultPreset     = "veryfast"
	DefaultCRF        = 20
)

var (
	ErrNoSpace    = errors.New("no space left on device")
	ErrPermission = errors.New("permission denied")
)

// RunResult is the structured outcome of one ffmpeg invocation.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// ExitError reports a non-zero ffmpeg exit.
type ExitError struct {
	Op     string
	Result RunResult
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("ffmpeg %s exited %d: %s", e.Op, e.Result.ExitCode, truncate(e.Result.StderrTail, 256))
}

// Is matches ErrNoSpace and ErrPermission against the reason ffmpeg printed.
func (e *ExitError) Is(target error) bool {
	stderr := strings.ToLower(e.Result.StderrTail)
	switch target {
	case ErrNoSpace:
		return strings.Contains(stderr, "no space left on device")
	case ErrPermission:
		return strings.Contains(stderr, "permission denied")
	}
	return false
}

// IsNoSpace reports whether err was caused by the output volume running out of space.
func IsNoSpace(err error) bool {
	return errors.Is(err, ErrNoSpace) || errors.Is(err, syscall.ENOSPC)
}

// IsPermission reports whether err was caused by the output location refusing writes.
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission) || errors.Is(err, fs.ErrPermission)
}
