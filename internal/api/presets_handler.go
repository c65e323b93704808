package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/events"
)

func listPresetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, PresetsResponse{Presets: cfg.CatalogService.ListPresetNames(r.Context())})
	}
}

func savePresetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SavePresetRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var (
			preset *catalog.Preset
			err    error
		)
		if req.ProjectID != nil {
			preset, err = cfg.CatalogService.SavePresetFromProject(r.Context(), *req.ProjectID, req.Name)
		} else {
			preset, err = cfg.CatalogService.SavePreset(r.Context(), req.Name, req.Categories)
		}
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, preset)
	}
}

func getPresetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preset, err := cfg.CatalogService.GetPreset(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, preset)
	}
}

func deletePresetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.CatalogService.DeletePreset(r.Context(), chi.URLParam(r, "name")); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func applyPresetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ApplyPresetRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		tree, err := cfg.CatalogService.LoadPreset(r.Context(), req.ProjectID, chi.URLParam(r, "name"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, CategoriesResponse{Categories: tree})
	}
}

func getKeyBindingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.CatalogService.KeyBindings(r.Context()))
	}
}

// setKeyBindingHandler persists one binding and pushes the full set to every
// open UI so all windows rebind together.
func setKeyBindingHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KeyBindingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		kb, err := cfg.CatalogService.SetKeyBinding(r.Context(), chi.URLParam(r, "action"), req.Key)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if cfg.Hub != nil {
			cfg.Hub.Publish(events.TopicKeyBindings, kb)
		}
		WriteJSON(w, http.StatusOK, kb)
	}
}

func resetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Controller != nil && cfg.Controller.InFlight() > 0 {
			WriteError(w, http.StatusConflict, "a clip is being created", "BUSY")
			return
		}
		if err := cfg.CatalogService.ResetAll(r.Context()); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if cfg.Hub != nil {
			cfg.Hub.Publish(events.TopicReset, nil)
			cfg.Hub.Publish(events.TopicKeyBindings, catalog.DefaultKeyBindings())
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
