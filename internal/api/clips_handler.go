package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/pipeline"
)

// hubPublisher forwards pipeline events to the event hub using the event type
// as the topic.
type hubPublisher struct {
	hub EventHub
}

func (p hubPublisher) Publish(e pipeline.Event) {
	p.hub.Publish(string(e.Type), e)
}

func clipPublisher(hub EventHub) pipeline.Publisher {
	if hub == nil {
		return nil
	}
	return hubPublisher{hub: hub}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if _, err := cfg.CatalogService.GetProject(r.Context(), id); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		var clips []*catalog.Clip
		if raw := r.URL.Query().Get("category"); raw != "" {
			categoryID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "category must be an integer", "BAD_REQUEST")
				return
			}
			clips = cfg.CatalogService.ListClipsByCategory(r.Context(), id, categoryID)
		} else {
			clips = cfg.CatalogService.ListClips(r.Context(), id)
		}
		WriteJSON(w, http.StatusOK, ClipsResponse{Clips: clips})
	}
}

// createClipHandler admits the request and returns immediately; progress and
// the outcome arrive on the event stream keyed by request_id.
func createClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if cfg.Controller == nil {
			WriteError(w, http.StatusServiceUnavailable, "clip creation unavailable", "UNAVAILABLE")
			return
		}
		var req CreateClipRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		project, err := cfg.CatalogService.GetProject(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		requestID, err := cfg.Controller.Start(r.Context(), callerID(r), pipeline.Request{
			ProjectID:  project.ID,
			VideoPath:  project.VideoPath,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
			Title:      req.Title,
			Categories: req.Categories,
			Notes:      req.Notes,
		}, clipPublisher(cfg.Hub))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, CreateClipResponse{RequestID: requestID, Status: "accepted"})
	}
}

func getClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		clip, err := cfg.CatalogService.GetClip(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, clip)
	}
}

func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var req UpdateClipRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		clip, err := cfg.CatalogService.UpdateClip(r.Context(), id, req.Title, req.Notes, req.Categories)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, clip)
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if err := cfg.CatalogService.DeleteClip(r.Context(), id); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func clipFileHandler(cfg ServerConfig, thumbnail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		clip, err := cfg.CatalogService.GetClip(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		path := clip.OutputPath
		if thumbnail {
			path = clip.ThumbnailPath
		}
		if path == "" || cfg.PlaybackServer == nil {
			WriteError(w, http.StatusNotFound, "file not found", "NOT_FOUND")
			return
		}

		if err := cfg.PlaybackServer.ServeFile(w, r, path); err != nil {
			cfg.Logger.Error("playback error", "error", err, "clip_id", id)
		}
	}
}

func cancelProcessHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processID := chi.URLParam(r, "id")
		if processID == "" || cfg.Canceller == nil {
			WriteError(w, http.StatusNotFound, "process not found", "NOT_FOUND")
			return
		}
		if !cfg.Canceller.Cancel(processID) {
			WriteError(w, http.StatusNotFound, "process not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, CancelResponse{ProcessID: processID, Cancelled: true})
	}
}

func listTagsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		video := strings.TrimSpace(q.Get("video"))
		if video == "" {
			WriteError(w, http.StatusBadRequest, "video is required", "BAD_REQUEST")
			return
		}

		fromRaw, toRaw := q.Get("from"), q.Get("to")
		if fromRaw == "" && toRaw == "" {
			WriteJSON(w, http.StatusOK, TagsResponse{Tags: cfg.CatalogService.ListTags(r.Context(), video)})
			return
		}

		from, err1 := strconv.ParseFloat(fromRaw, 64)
		to, err2 := strconv.ParseFloat(toRaw, 64)
		if err1 != nil || err2 != nil || from > to {
			WriteError(w, http.StatusBadRequest, "from and to must both be numbers with from <= to", "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusOK, TagsResponse{Tags: cfg.CatalogService.ListTagsInRange(r.Context(), video, from, to)})
	}
}

func createTagHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tag catalog.Tag
		if !decodeJSON(w, r, &tag) {
			return
		}
		tag.ID = 0
		if err := cfg.CatalogService.CreateTag(r.Context(), &tag); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, tag)
	}
}

func deleteTagHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if err := cfg.CatalogService.DeleteTag(r.Context(), id); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
