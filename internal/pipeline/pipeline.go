// Package pipeline turns a marked range of a game video into a clip: validate,
// extract a thumbnail, trim and re-encode, then persist. Controller wraps it with
// pre-flight checks, retries and one-at-a-time admission per caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/encoder"
	"github.com/courtcut/courtcut-agent/internal/export"
	"github.com/courtcut/courtcut-agent/internal/logging"
	"github.com/courtcut/courtcut-agent/internal/preflight"
)

const (
	maxTitleChars = 60
	suffixChars   = 6
	stampLayout   = "20060102-150405"
)

// ClipStore persists finished clips.
type ClipStore interface {
	CreateClip(ctx context.Context, c *catalog.Clip) error
}

type Request struct {
	RequestID  string  `json:"request_id,omitempty"`
	ProjectID  int64   `json:"project_id"`
	VideoPath  string  `json:"video_path"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Title      string  `json:"title"`
	Categories []int64 `json:"categories"`
	Notes      string  `json:"notes,omitempty"`
}

// Outcome is the result of one pipeline attempt. Err is set only in StateFailed.
type Outcome struct {
	State         State
	ProcessID     string
	Clip          *catalog.Clip
	OutputPath    string
	ThumbnailPath string
	Err           *Error
}

type Config struct {
	ClipsDir      string
	ThumbnailsDir string
	Logger        *slog.Logger
}

type Pipeline struct {
	cfg     Config
	enc     encoder.Encoder
	store   ClipStore
	tracker *Tracker
	logger  *slog.Logger

	canWrite func(dir string) error
	newID    func() string
	now      func() time.Time
}

func New(cfg Config, enc encoder.Encoder, store ClipStore, tracker *Tracker) *Pipeline {
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Pipeline{
		cfg:      cfg,
		enc:      enc,
		store:    store,
		tracker:  tracker,
		logger:   logging.WithComponent(logging.OrDiscard(cfg.Logger), "pipeline"),
		canWrite: preflight.CanWrite,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Cancel stops the encoder stage tracked under processID. It returns false when
// the id is unknown or the request already left the encoder stages.
func (p *Pipeline) Cancel(processID string) bool {
	ok := p.tracker.Cancel(processID)
	p.logger.Info("cancel requested", "process_id", processID, "found", ok)
	return ok
}

func (p *Pipeline) Tracker() *Tracker {
	return p.tracker
}

// Run drives one attempt through the state machine and returns where it ended.
func (p *Pipeline) Run(ctx context.Context, req Request, pub Publisher) Outcome {
	if pub == nil {
		pub = discardPublisher{}
	}
	logger := logging.WithProjectID(logging.WithRequestID(p.logger, req.RequestID), req.ProjectID)

	stageCtx, stop := context.WithCancel(ctx)
	defer stop()

	out := Outcome{State: StateValidating}
	defer func() {
		if out.ProcessID != "" {
			p.tracker.Remove(out.ProcessID)
		}
	}()

	ev := p.validate(req)
	var act action
	out.State, act = transition(out.State, ev)

	for act != actNone {
		switch act {
		case actThumbnail:
			out.OutputPath, out.ThumbnailPath = p.outputPaths(req.Title)
			out.ProcessID = p.newID()
			p.tracker.Register(out.ProcessID, stop)
			logger = logging.WithProcessID(logger, out.ProcessID)
			pub.Publish(Event{Type: EventProcessStarted, RequestID: req.RequestID, ProcessID: out.ProcessID})

			logger.Info("extracting thumbnail", "at", req.StartTime)
			err := p.enc.Thumbnail(stageCtx, req.VideoPath, out.ThumbnailPath, req.StartTime)
			ev = stageEvent(stageCtx, CodeThumbnailFailed, err)

		case actTrim:
			logger.Info("trimming clip", "start", req.StartTime, "duration", req.EndTime-req.StartTime)
			err := p.enc.Trim(stageCtx, encoder.TrimRequest{
				Input:    req.VideoPath,
				Output:   out.OutputPath,
				Start:    req.StartTime,
				Duration: req.EndTime - req.StartTime,
			}, func(pr encoder.Progress) {
				pub.Publish(Event{
					Type:      EventProgress,
					RequestID: req.RequestID,
					ProcessID: out.ProcessID,
					Percent:   pr.Percent,
					Position:  req.StartTime + pr.Position,
				})
			})
			ev = stageEvent(stageCtx, CodeFFmpegFailed, err)
			// Past this point cancel no longer applies; losing the race to a
			// concurrent Cancel still counts as cancelled.
			if ev.kind == evStageOK && !p.tracker.Remove(out.ProcessID) {
				ev = event{kind: evCancel}
			}

		case actPersist:
			clip := &catalog.Clip{
				ProjectID:     req.ProjectID,
				VideoPath:     req.VideoPath,
				OutputPath:    out.OutputPath,
				ThumbnailPath: out.ThumbnailPath,
				StartTime:     req.StartTime,
				EndTime:       req.EndTime,
				Duration:      req.EndTime - req.StartTime,
				Title:         strings.TrimSpace(req.Title),
				Categories:    catalog.Dedupe(req.Categories),
				Notes:         strings.TrimSpace(req.Notes),
			}
			if err := p.store.CreateClip(ctx, clip); err != nil {
				logger.Error("failed to persist clip", "error", err, "output", logging.SanitizePath(out.OutputPath))
				ev = event{kind: evPersistFailed, err: newError(CodeDatabaseFailed, err)}
			} else {
				out.Clip = clip
				ev = event{kind: evPersisted}
			}
		}
		out.State, act = transition(out.State, ev)
	}

	switch out.State {
	case StateFailed:
		out.Err = ev.err
		logger.Warn("clip attempt failed", "code", out.Err.Code, "error", out.Err.Err)
	case StateCancelled:
		logger.Info("clip cancelled")
	case StateDone:
		logger.Info("clip created", "clip_id", out.Clip.ID)
	}
	return out
}

// validate checks the request before any encoder runs.
func (p *Pipeline) validate(req Request) event {
	invalid := func(code Code, format string, args ...any) event {
		return event{kind: evInvalid, err: newError(code, fmt.Errorf(format, args...))}
	}

	switch {
	case req.EndTime <= req.StartTime:
		return invalid(CodeInvalidDuration, "end %.3f is not after start %.3f", req.EndTime, req.StartTime)
	case req.StartTime < 0 || req.EndTime < 0:
		return invalid(CodeInvalidTime, "negative time %.3f-%.3f", req.StartTime, req.EndTime)
	case strings.TrimSpace(req.Title) == "":
		return invalid(CodeInvalidTitle, "empty title")
	case len(req.Categories) == 0:
		return invalid(CodeNoCategories, "no categories")
	}

	info, err := os.Stat(req.VideoPath)
	if err != nil || info.IsDir() {
		return invalid(CodeFileNotFound, "source %s not found", logging.SanitizePath(req.VideoPath))
	}

	for _, dir := range []string{p.cfg.ClipsDir, p.cfg.ThumbnailsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return event{kind: evInvalid, err: newError(CodeNoWriteAccess, err)}
		}
		if err := p.canWrite(dir); err != nil {
			return event{kind: evInvalid, err: newError(CodeNoWriteAccess, err)}
		}
	}
	return event{kind: evValid}
}

// stageEvent classifies the result of an encoder stage.
func stageEvent(ctx context.Context, code Code, err error) event {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return event{kind: evCancel}
	case err == nil:
		return event{kind: evStageOK}
	case encoder.IsNoSpace(err):
		return event{kind: evStageFailed, err: newError(CodeInsufficientDiskSpace, err)}
	case encoder.IsPermission(err):
		return event{kind: evStageFailed, err: newError(CodeNoWriteAccess, err)}
	}
	return event{kind: evStageFailed, err: newError(code, err)}
}

// outputPaths derives `<title>_<stamp>_<suffix>` names for the clip and thumbnail.
func (p *Pipeline) outputPaths(title string) (string, string) {
	stem := fmt.Sprintf("%s_%s_%s", FileStem(title), p.now().Format(stampLayout), p.suffix())
	return filepath.Join(p.cfg.ClipsDir, stem+".mp4"), filepath.Join(p.cfg.ThumbnailsDir, stem+".jpg")
}

func (p *Pipeline) suffix() string {
	id := strings.ReplaceAll(p.newID(), "-", "")
	if len(id) < suffixChars {
		return id
	}
	return id[:suffixChars]
}

// FileStem makes a clip title safe for use in a file name.
func FileStem(title string) string {
	stem := export.SanitizeName(title, maxTitleChars)
	stem = strings.Join(strings.Fields(stem), "_")
	if stem == "" {
		return "clip"
	}
	return stem
}
