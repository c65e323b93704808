package ui

import (
	"fmt"
	"sync"

	"github.com/courtcut/courtcut-agent/internal/events"
	"github.com/courtcut/courtcut-agent/internal/pipeline"
)

const (
	StateIdle       = "Idle"
	StateProcessing = "Processing"
	StateRetrying   = "Retrying"
	StateFailed     = "Failed"
	StateCancelled  = "Cancelled"
)

// Status is what the tray menu renders.
type Status struct {
	State     string
	Percent   float64
	ProcessID string
	Clips     int
}

func (s Status) Title() string {
	switch s.State {
	case StateProcessing:
		return fmt.Sprintf("Status: %s %.0f%%", s.State, s.Percent)
	case "":
		return "Status: " + StateIdle
	}
	return "Status: " + s.State
}

func (s Status) ClipsTitle() string {
	if s.Clips == 1 {
		return "1 clip"
	}
	return fmt.Sprintf("%d clips", s.Clips)
}

// Tracker follows clip events from the hub and remembers the process that is
// currently encoding so the tray can cancel it.
type Tracker struct {
	mu       sync.Mutex
	status   Status
	onChange func(Status)
}

func NewTracker(clips int, onChange func(Status)) *Tracker {
	return &Tracker{
		status:   Status{State: StateIdle, Clips: clips},
		onChange: onChange,
	}
}

func (t *Tracker) OnEvent(msg events.Message) {
	if msg.Topic == events.TopicReset {
		t.update(func(s *Status) { *s = Status{State: StateIdle} })
		return
	}
	ev, ok := msg.Data.(pipeline.Event)
	if !ok {
		return
	}

	t.update(func(s *Status) {
		switch ev.Type {
		case pipeline.EventProcessStarted:
			s.State = StateProcessing
			s.ProcessID = ev.ProcessID
			s.Percent = 0
		case pipeline.EventProgress:
			if ev.ProcessID == s.ProcessID {
				s.Percent = ev.Percent
			}
		case pipeline.EventRetrying:
			s.State = StateRetrying
			s.ProcessID = ""
		case pipeline.EventCreated:
			*s = Status{State: StateIdle, Clips: s.Clips + 1}
		case pipeline.EventFailed:
			*s = Status{State: StateFailed, Clips: s.Clips}
		case pipeline.EventCancelled:
			*s = Status{State: StateCancelled, Clips: s.Clips}
		}
	})
}

func (t *Tracker) update(fn func(*Status)) {
	t.mu.Lock()
	fn(&t.status)
	snapshot := t.status
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(snapshot)
	}
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// ActiveProcess returns the process id of the running encoder stage, if any.
func (t *Tracker) ActiveProcess() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.ProcessID, t.status.ProcessID != ""
}
