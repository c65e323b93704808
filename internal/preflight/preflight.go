// Package preflight checks that the machine can produce clips: the encoder is
// installed, the output location is writable and there is room on the disk.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/courtcut/courtcut-agent/internal/encoder"
	"github.com/courtcut/courtcut-agent/internal/logging"
)

// DefaultLowDiskBytes is the free-space threshold below which a warning is raised.
const DefaultLowDiskBytes uint64 = 1 << 30

type IssueCode string

const (
	IssueEncoderNotFound     IssueCode = "encoder_not_found"
	IssueOutputNotAccessible IssueCode = "output_not_accessible"
	IssueNoWriteAccess       IssueCode = "no_write_access"
)

var issueMessages = map[IssueCode]string{
	IssueEncoderNotFound:     "The video encoder (ffmpeg) was not found. Install ffmpeg or set COURTCUT_FFMPEG_PATH.",
	IssueOutputNotAccessible: "The clip output location does not exist or cannot be accessed.",
	IssueNoWriteAccess:       "The clip output location is not writable.",
}

func (c IssueCode) Message() string {
	if m, ok := issueMessages[c]; ok {
		return m
	}
	return string(c)
}

type WarningCode string

const WarningLowDiskSpace WarningCode = "low_disk_space"

func (c WarningCode) Message() string {
	if c == WarningLowDiskSpace {
		return "Disk space is running low. Clip creation may fail."
	}
	return string(c)
}

type Environment struct {
	Platform    string  `json:"platform"`
	Arch        string  `json:"arch"`
	EncoderPath string  `json:"encoder_path"`
	OutputDir   string  `json:"output_dir"`
	FreeBytes   *uint64 `json:"free_bytes,omitempty"`
	FreeHuman   string  `json:"free_human,omitempty"`
}

type Result struct {
	OK          bool          `json:"ok"`
	Issues      []IssueCode   `json:"issues"`
	Warnings    []WarningCode `json:"warnings"`
	Messages    []string      `json:"messages"`
	Environment Environment   `json:"environment"`
	CheckedAt   time.Time     `json:"checked_at"`
}

func (r *Result) addIssue(code IssueCode) {
	r.Issues = append(r.Issues, code)
	r.Messages = append(r.Messages, code.Message())
}

func (r *Result) addWarning(code WarningCode, detail string) {
	r.Warnings = append(r.Warnings, code)
	r.Messages = append(r.Messages, code.Message()+" "+detail)
}

// Error summarises the issues of a failed result.
func (r *Result) Error() error {
	if r.OK {
		return nil
	}
	return fmt.Errorf("system check failed: %v", r.Issues)
}

type Checker interface {
	Check(ctx context.Context) *Result
}

type Config struct {
	EncoderPath  string // configured ffmpeg path; empty = PATH lookup
	OutputDir    string
	LowDiskBytes uint64
	Logger       *slog.Logger
}

// Validator runs the environment checks. Every check runs even when an earlier
// one failed.
type Validator struct {
	cfg    Config
	logger *slog.Logger

	resolve   func(preferred string) (string, error)
	freeSpace func(path string) (uint64, error)
	now       func() time.Time
}

func New(cfg Config) *Validator {
	if cfg.LowDiskBytes == 0 {
		cfg.LowDiskBytes = DefaultLowDiskBytes
	}
	return &Validator{
		cfg:       cfg,
		logger:    logging.WithComponent(logging.OrDiscard(cfg.Logger), "preflight"),
		resolve:   encoder.ResolveBinary,
		freeSpace: freeBytes,
		now:       time.Now,
	}
}

func (v *Validator) Check(ctx context.Context) *Result {
	res := &Result{
		Issues:   []IssueCode{},
		Warnings: []WarningCode{},
		Messages: []string{},
		Environment: Environment{
			Platform:  runtime.GOOS,
			Arch:      runtime.GOARCH,
			OutputDir: v.cfg.OutputDir,
		},
		CheckedAt: v.now(),
	}

	if path, err := v.resolve(v.cfg.EncoderPath); err != nil {
		res.Environment.EncoderPath = v.cfg.EncoderPath
		res.addIssue(IssueEncoderNotFound)
	} else {
		res.Environment.EncoderPath = path
	}

	parent := filepath.Dir(filepath.Clean(v.cfg.OutputDir))
	accessible := isAccessibleDir(parent)
	if !accessible {
		res.addIssue(IssueOutputNotAccessible)
	}

	if CanWrite(parent) != nil {
		res.addIssue(IssueNoWriteAccess)
	}

	if ctx.Err() == nil {
		v.checkDisk(res, parent)
	}

	res.OK = len(res.Issues) == 0
	if res.OK {
		v.logger.Debug("system check passed", "warnings", len(res.Warnings))
	} else {
		v.logger.Warn("system check failed", "issues", res.Issues)
	}
	return res
}

func (v *Validator) checkDisk(res *Result, parent string) {
	target := v.cfg.OutputDir
	if !isAccessibleDir(target) {
		target = parent
	}
	free, err := v.freeSpace(target)
	if err != nil {
		v.logger.Debug("free space unavailable", "error", err)
		return
	}
	res.Environment.FreeBytes = &free
	res.Environment.FreeHuman = humanize.IBytes(free)
	if free < v.cfg.LowDiskBytes {
		res.addWarning(WarningLowDiskSpace, fmt.Sprintf("(%s free)", humanize.IBytes(free)))
	}
}

func isAccessibleDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// CanWrite creates and removes a probe file in dir.
func CanWrite(dir string) error {
	f, err := os.CreateTemp(dir, ".courtcut-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}

var errFreeSpaceUnsupported = errors.New("free space not available on this platform")
