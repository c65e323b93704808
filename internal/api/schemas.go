package api

import (
	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/preflight"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State         string            `json:"state"`
	ClipsCount    int               `json:"clips_count"`
	ProjectsCount int               `json:"projects_count"`
	InFlight      int               `json:"in_flight"`
	CallerBusy    bool              `json:"caller_busy"`
	EventClients  int               `json:"event_clients"`
	SystemCheck   *preflight.Result `json:"system_check,omitempty"`
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	VideoPath   string `json:"video_path"`
	Description string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ProjectsResponse struct {
	Projects []*catalog.Project `json:"projects"`
}

type CategoryRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
}

type CategoriesResponse struct {
	Categories []*catalog.Category `json:"categories"`
}

type CreateClipRequest struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Title      string  `json:"title"`
	Categories []int64 `json:"categories"`
	Notes      string  `json:"notes,omitempty"`
}

type CreateClipResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type UpdateClipRequest struct {
	Title      *string `json:"title,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	Categories []int64 `json:"categories,omitempty"`
}

type ClipsResponse struct {
	Clips []*catalog.Clip `json:"clips"`
}

type CancelResponse struct {
	ProcessID string `json:"process_id"`
	Cancelled bool   `json:"cancelled"`
}

type TagsResponse struct {
	Tags []*catalog.Tag `json:"tags"`
}

type SavePresetRequest struct {
	Name string `json:"name"`
	// Either ProjectID (snapshot that project's categories) or Categories.
	ProjectID  *int64                   `json:"project_id,omitempty"`
	Categories []catalog.PresetCategory `json:"categories,omitempty"`
}

type ApplyPresetRequest struct {
	ProjectID int64 `json:"project_id"`
}

type PresetsResponse struct {
	Presets []string `json:"presets"`
}

type KeyBindingRequest struct {
	Key string `json:"key"`
}

type ExportRequest struct {
	ProjectID   int64   `json:"project_id"`
	Destination string  `json:"destination"`
	CategoryIDs []int64 `json:"category_ids"`
	EDL         bool    `json:"edl,omitempty"`
	FrameRate   float64 `json:"frame_rate,omitempty"`
}

type ErrorResponse struct {
	Error  string   `json:"error"`
	Code   string   `json:"code,omitempty"`
	Issues []string `json:"issues,omitempty"`
}
