package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courtcut/courtcut-agent/internal/logging"
	"github.com/courtcut/courtcut-agent/internal/preflight"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxInFlight = 1
)

// Runner performs one full pipeline attempt.
type Runner interface {
	Run(ctx context.Context, req Request, pub Publisher) Outcome
}

type ControllerConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxInFlight bounds concurrent sequences across all callers.
	MaxInFlight int
	Logger      *slog.Logger
}

// Controller admits clip requests, runs pre-flight, and re-drives retryable
// failures with exponential backoff. One sequence may be active per caller, and
// at most MaxInFlight across the instance.
type Controller struct {
	runner  Runner
	checker preflight.Checker
	cfg     ControllerConfig
	logger  *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	mu   sync.Mutex
	busy map[string]string // caller id -> request id

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(runner Runner, checker preflight.Checker, cfg ControllerConfig) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		runner:  runner,
		checker: checker,
		cfg:     cfg,
		logger:  logging.WithComponent(logging.OrDiscard(cfg.Logger), "controller"),
		sleep:   sleepCtx,
		newID:   uuid.NewString,
		busy:    make(map[string]string),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start admits a request for callerID and runs it in the background. It fails
// synchronously with creation_in_progress when the caller already has a request
// in flight or the instance is at MaxInFlight, or system_check_failed when pre-flight reports issues. Admitted
// requests publish exactly one terminal event.
func (c *Controller) Start(ctx context.Context, callerID string, req Request, pub Publisher) (string, error) {
	if pub == nil {
		pub = discardPublisher{}
	}
	requestID := c.newID()
	if !c.acquire(callerID, requestID) {
		return "", &Error{Code: CodeCreationInProgress}
	}

	if c.checker != nil {
		res := c.checker.Check(ctx)
		if !res.OK {
			c.release(callerID)
			issues := make([]string, 0, len(res.Issues))
			for _, code := range res.Issues {
				issues = append(issues, string(code))
			}
			c.logger.Warn("clip request rejected by system check", "caller", callerID, "issues", issues)
			return "", &Error{Code: CodeSystemCheckFailed, Issues: issues, Err: res.Error()}
		}
	}

	req.RequestID = requestID
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := c.executeSafely(req, pub)
		// Observers may start the next clip from the terminal event.
		c.release(callerID)
		c.publishTerminal(req, pub, res)
	}()
	return requestID, nil
}

type result struct {
	out Outcome
	err *Error
}

func (c *Controller) executeSafely(req Request, pub Publisher) (res result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("clip pipeline panicked", "request_id", req.RequestID, "panic", r)
			res = result{out: Outcome{State: StateFailed}, err: newError(CodeCreationFailed, fmt.Errorf("panic: %v", r))}
		}
	}()
	out, err := c.Execute(c.ctx, req, pub)
	return result{out: out, err: err}
}

// Execute runs up to MaxAttempts attempts, waiting BaseDelay*2^(n-1) before
// attempt n+1. Only retryable codes are retried. A nil error means the clip was
// created or the request was cancelled; see Outcome.State.
func (c *Controller) Execute(ctx context.Context, req Request, pub Publisher) (Outcome, *Error) {
	if pub == nil {
		pub = discardPublisher{}
	}
	logger := c.logger.With("request_id", req.RequestID)

	for attempt := 1; ; attempt++ {
		out := c.runner.Run(ctx, req, pub)
		switch out.State {
		case StateDone, StateCancelled:
			return out, nil
		case StateFailed:
		default:
			return out, newError(CodeCreationFailed, fmt.Errorf("attempt ended in state %s", out.State))
		}

		failure := out.Err
		if failure == nil {
			failure = newError(CodeCreationFailed, nil)
		}
		if !failure.Code.Retryable() {
			return out, failure
		}
		if attempt >= c.cfg.MaxAttempts {
			exhausted := &Error{Code: failure.Code, Attempts: attempt, Err: failure.Err}
			logger.Warn("clip retries exhausted", "code", failure.Code, "attempts", attempt)
			return out, exhausted
		}

		delay := c.cfg.BaseDelay << (attempt - 1)
		logger.Info("retrying clip", "code", failure.Code, "attempt", attempt, "delay", delay)
		pub.Publish(Event{
			Type:      EventRetrying,
			RequestID: req.RequestID,
			Attempt:   attempt + 1,
			Code:      failure.Code,
			Message:   failure.Code.Message(),
			RetryIn:   delay.Seconds(),
		})
		if err := c.sleep(ctx, delay); err != nil {
			return Outcome{State: StateCancelled}, nil
		}
	}
}

func (c *Controller) publishTerminal(req Request, pub Publisher, res result) {
	ev := Event{RequestID: req.RequestID, ProcessID: res.out.ProcessID}
	switch {
	case res.err != nil:
		ev.Type = EventFailed
		ev.Code = res.err.Code
		ev.Message = res.err.Error()
		ev.Attempts = res.err.Attempts
		ev.Issues = res.err.Issues
	case res.out.State == StateDone:
		ev.Type = EventCreated
		ev.Clip = res.out.Clip
		ev.OutputPath = res.out.OutputPath
		ev.ThumbnailPath = res.out.ThumbnailPath
	default:
		ev.Type = EventCancelled
	}
	pub.Publish(ev)
}

func (c *Controller) acquire(callerID, requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.busy[callerID]; ok {
		return false
	}
	if len(c.busy) >= c.cfg.MaxInFlight {
		return false
	}
	c.busy[callerID] = requestID
	return true
}

func (c *Controller) release(callerID string) {
	c.mu.Lock()
	delete(c.busy, callerID)
	c.mu.Unlock()
}

// Busy reports whether callerID has a request in flight.
func (c *Controller) Busy(callerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.busy[callerID]
	return ok
}

// InFlight returns the number of requests currently running.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.busy)
}

// Shutdown cancels running requests and waits for them to publish their
// terminal events.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
