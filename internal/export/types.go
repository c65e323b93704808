package export

import (
	"errors"

	"github.com/courtcut/courtcut-agent/internal/catalog"
)

var (
	ErrInvalidDestination = errors.New("invalid destination")
	ErrNoCategories       = errors.New("no categories requested")
)

// CategoryRef names a requested category. The name becomes the folder name.
type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Request describes one export. Clips is a point-in-time snapshot supplied by
// the caller; the batcher never re-reads the store.
type Request struct {
	Destination string         `json:"destination"`
	Categories  []CategoryRef  `json:"categories"`
	Clips       []catalog.Clip `json:"-"`
	WriteEDL    bool           `json:"edl"`
	FrameRate   float64        `json:"frame_rate"`
}

type Result struct {
	Root     string   `json:"root"`
	Files    []string `json:"files"`
	Count    int      `json:"count"`
	Bytes    int64    `json:"bytes"`
	Folders  []string `json:"folders"`
	EDLFiles []string `json:"edl_files,omitempty"`
	Skipped  []int64  `json:"skipped_clip_ids,omitempty"`
}

// EDLClip is one event in an edit decision list. Times are seconds into
// MediaPath.
type EDLClip struct {
	Name      string
	MediaPath string
	Start     float64
	End       float64
}
