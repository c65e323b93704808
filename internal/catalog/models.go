package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidParent     = errors.New("parent category must be a top-level category of the same project")
	ErrInvalidKeyBinding = errors.New("invalid key binding")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicate         = errors.New("already exists")
)

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	VideoPath   string    `json:"video_path"`
	VideoName   string    `json:"video_name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastOpened  time.Time `json:"last_opened"`
}

type Category struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Children is only populated by hierarchical reads; it is never nil there.
	Children []*Category `json:"children,omitempty"`
}

// MarshalJSON always emits children for hierarchical reads, including an empty
// list, and omits it for flat reads where Children is nil.
func (c Category) MarshalJSON() ([]byte, error) {
	type plain Category
	if c.Children == nil {
		return json.Marshal(plain(c))
	}
	return json.Marshal(struct {
		plain
		Children []*Category `json:"children"`
	}{plain(c), c.Children})
}

func (c *Category) IsTopLevel() bool {
	return c.ParentID == nil
}

type Clip struct {
	ID            int64       `json:"id"`
	ProjectID     int64       `json:"project_id"`
	VideoPath     string      `json:"video_path"`
	OutputPath    string      `json:"output_path"`
	ThumbnailPath string      `json:"thumbnail_path,omitempty"`
	StartTime     float64     `json:"start_time"`
	EndTime       float64     `json:"end_time"`
	Duration      float64     `json:"duration"`
	Title         string      `json:"title"`
	Categories    CategoryIDs `json:"categories"`
	Notes         string      `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// CategoryIDs is the ordered set of category ids attached to a clip.
// It is stored as a JSON array.
type CategoryIDs []int64

func (ids CategoryIDs) Encode() string {
	if ids == nil {
		ids = CategoryIDs{}
	}
	b, _ := json.Marshal([]int64(ids))
	return string(b)
}

// DecodeCategoryIDs parses a stored category list. An empty string decodes to an empty set.
func DecodeCategoryIDs(s string) (CategoryIDs, error) {
	if strings.TrimSpace(s) == "" {
		return CategoryIDs{}, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("decode category ids: %w", err)
	}
	return Dedupe(ids), nil
}

// Dedupe keeps the first occurrence of every id, preserving order.
func Dedupe(ids []int64) CategoryIDs {
	seen := make(map[int64]bool, len(ids))
	out := make(CategoryIDs, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (ids CategoryIDs) Contains(id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type Tag struct {
	ID          int64     `json:"id"`
	VideoPath   string    `json:"video_path"`
	Timestamp   float64   `json:"timestamp"`
	TagType     string    `json:"tag_type"`
	Description string    `json:"description,omitempty"`
	Player      string    `json:"player,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PresetCategory is one flattened category definition inside a preset.
// ParentName refers to another blueprint in the same preset by name.
type PresetCategory struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
	ParentName  string `json:"parent_name,omitempty"`
}

type Preset struct {
	Name       string           `json:"name"`
	Categories []PresetCategory `json:"categories"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

const (
	ActionMarkIn  = "mark_in"
	ActionMarkOut = "mark_out"

	DefaultMarkInKey  = "i"
	DefaultMarkOutKey = "o"
)

type KeyBindings struct {
	MarkIn  string `json:"mark_in"`
	MarkOut string `json:"mark_out"`
}

func DefaultKeyBindings() KeyBindings {
	return KeyBindings{MarkIn: DefaultMarkInKey, MarkOut: DefaultMarkOutKey}
}

// ValidateKeyBinding checks the action name and that key is a single character.
func ValidateKeyBinding(action, key string) error {
	if action != ActionMarkIn && action != ActionMarkOut {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidKeyBinding, action)
	}
	if utf8.RuneCountInString(key) != 1 || strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key must be a single character", ErrInvalidKeyBinding)
	}
	return nil
}

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}
