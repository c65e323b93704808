package pipeline

import (
	"github.com/courtcut/courtcut-agent/internal/catalog"
)

type EventType string

const (
	EventProcessStarted EventType = "clip.process_started"
	EventProgress       EventType = "clip.progress"
	EventRetrying       EventType = "clip.retrying"
	EventCreated        EventType = "clip.created"
	EventFailed         EventType = "clip.failed"
	EventCancelled      EventType = "clip.cancelled"
)

// Event is what observers see for one clip-creation request. Every request ends
// with exactly one of EventCreated, EventFailed or EventCancelled.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id"`
	ProcessID string    `json:"process_id,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`

	Percent  float64 `json:"percent,omitempty"`
	Position float64 `json:"position,omitempty"`

	Clip          *catalog.Clip `json:"clip,omitempty"`
	OutputPath    string        `json:"output_path,omitempty"`
	ThumbnailPath string        `json:"thumbnail_path,omitempty"`

	Code     Code     `json:"code,omitempty"`
	Message  string   `json:"message,omitempty"`
	Issues   []string `json:"issues,omitempty"`
	Attempts int      `json:"attempts,omitempty"`
	RetryIn  float64  `json:"retry_in,omitempty"`
}

func (e Event) Terminal() bool {
	return e.Type == EventCreated || e.Type == EventFailed || e.Type == EventCancelled
}

type Publisher interface {
	Publish(Event)
}

type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

type discardPublisher struct{}

func (discardPublisher) Publish(Event) {}
