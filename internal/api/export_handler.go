package api

import (
	"fmt"
	"net/http"

	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/export"
)

// exportHandler resolves the requested categories of one project, snapshots
// its clips and hands both to the batcher.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Exporter == nil {
			WriteError(w, http.StatusServiceUnavailable, "export unavailable", "UNAVAILABLE")
			return
		}
		var req ExportRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := export.ValidateDestination(req.Destination); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if len(req.CategoryIDs) == 0 {
			WriteError(w, http.StatusBadRequest, "category_ids must not be empty", "BAD_REQUEST")
			return
		}

		ctx := r.Context()
		if _, err := cfg.CatalogService.GetProject(ctx, req.ProjectID); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		known := make(map[int64]*catalog.Category)
		for _, c := range cfg.CatalogService.ListCategories(ctx, req.ProjectID) {
			known[c.ID] = c
		}
		refs := make([]export.CategoryRef, 0, len(req.CategoryIDs))
		for _, id := range catalog.Dedupe(req.CategoryIDs) {
			c, ok := known[id]
			if !ok {
				WriteError(w, http.StatusBadRequest, fmt.Sprintf("category %d does not belong to project", id), "BAD_REQUEST")
				return
			}
			refs = append(refs, export.CategoryRef{ID: c.ID, Name: c.Name})
		}

		listed := cfg.CatalogService.ListClips(ctx, req.ProjectID)
		snapshot := make([]catalog.Clip, 0, len(listed))
		for _, c := range listed {
			snapshot = append(snapshot, *c)
		}

		res, err := cfg.Exporter.Batch(ctx, export.Request{
			Destination: req.Destination,
			Categories:  refs,
			Clips:       snapshot,
			WriteEDL:    req.EDL,
			FrameRate:   req.FrameRate,
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}
