package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courtcut/courtcut-agent/internal/logging"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	cfg.Logger = logging.OrDiscard(cfg.Logger)
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.ConfigStore, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/system-check", systemCheckHandler(cfg))
		r.Get("/events", eventsHandler(cfg))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", listProjectsHandler(cfg))
			r.Post("/", createProjectHandler(cfg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getProjectHandler(cfg))
				r.Patch("/", updateProjectHandler(cfg))
				r.Delete("/", deleteProjectHandler(cfg))
				r.Post("/open", openProjectHandler(cfg))
				r.Get("/categories", listCategoriesHandler(cfg))
				r.Post("/categories", createCategoryHandler(cfg))
				r.Get("/clips", listClipsHandler(cfg))
				r.Post("/clips", createClipHandler(cfg))
			})
		})

		r.Patch("/categories/{id}", updateCategoryHandler(cfg))
		r.Delete("/categories/{id}", deleteCategoryHandler(cfg))

		r.Get("/clips/{id}", getClipHandler(cfg))
		r.Patch("/clips/{id}", updateClipHandler(cfg))
		r.Delete("/clips/{id}", deleteClipHandler(cfg))
		r.Get("/clips/{id}/file", clipFileHandler(cfg, false))
		r.Head("/clips/{id}/file", clipFileHandler(cfg, false))
		r.Get("/clips/{id}/thumbnail", clipFileHandler(cfg, true))

		r.Post("/processes/{id}/cancel", cancelProcessHandler(cfg))

		r.Get("/tags", listTagsHandler(cfg))
		r.Post("/tags", createTagHandler(cfg))
		r.Delete("/tags/{id}", deleteTagHandler(cfg))

		r.Get("/presets", listPresetsHandler(cfg))
		r.Post("/presets", savePresetHandler(cfg))
		r.Get("/presets/{name}", getPresetHandler(cfg))
		r.Delete("/presets/{name}", deletePresetHandler(cfg))
		r.Post("/presets/{name}/apply", applyPresetHandler(cfg))

		r.Get("/keybindings", getKeyBindingsHandler(cfg))
		r.Put("/keybindings/{action}", setKeyBindingHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Post("/reset", resetHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resp := StatusResponse{
			State:         "idle",
			ClipsCount:    cfg.CatalogService.CountClips(ctx),
			ProjectsCount: len(cfg.CatalogService.ListProjects(ctx)),
		}

		if cfg.Controller != nil {
			resp.InFlight = cfg.Controller.InFlight()
			resp.CallerBusy = cfg.Controller.Busy(callerID(r))
			if resp.InFlight > 0 {
				resp.State = "processing"
			}
		}
		if cfg.Hub != nil {
			resp.EventClients = cfg.Hub.ClientCount()
		}
		if cfg.SystemCheck != nil {
			if res := cfg.SystemCheck.Get(ctx); res != nil {
				resp.SystemCheck = res
				if !res.OK && resp.State == "idle" {
					resp.State = "error"
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func systemCheckHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.SystemCheck == nil {
			WriteError(w, http.StatusServiceUnavailable, "system check unavailable", "UNAVAILABLE")
			return
		}
		WriteJSON(w, http.StatusOK, cfg.SystemCheck.Refresh(r.Context()))
	}
}

func eventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Hub == nil {
			WriteError(w, http.StatusServiceUnavailable, "event stream unavailable", "UNAVAILABLE")
			return
		}
		cfg.Hub.ServeWS(w, r)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}
