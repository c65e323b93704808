package api

import (
	"net/http"

	"github.com/courtcut/courtcut-agent/internal/catalog"
)

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, ProjectsResponse{Projects: cfg.CatalogService.ListProjects(r.Context())})
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		project, err := cfg.CatalogService.CreateProject(r.Context(), req.Name, req.VideoPath, req.Description)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, project)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		project, err := cfg.CatalogService.GetProject(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func updateProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var req UpdateProjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		project, err := cfg.CatalogService.UpdateProject(r.Context(), id, req.Name, req.Description)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func openProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		project, err := cfg.CatalogService.OpenProject(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if err := cfg.CatalogService.DeleteProject(r.Context(), id); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listCategoriesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if _, err := cfg.CatalogService.GetProject(r.Context(), id); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		var categories []*catalog.Category
		switch r.URL.Query().Get("tree") {
		case "1", "true":
			categories = cfg.CatalogService.CategoryTree(r.Context(), id)
		default:
			categories = cfg.CatalogService.ListCategories(r.Context(), id)
		}
		WriteJSON(w, http.StatusOK, CategoriesResponse{Categories: categories})
	}
}

func createCategoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var req CategoryRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		category := &catalog.Category{
			ProjectID:   id,
			Name:        req.Name,
			Color:       req.Color,
			Description: req.Description,
			ParentID:    req.ParentID,
		}
		if err := cfg.CatalogService.CreateCategory(r.Context(), category); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, category)
	}
}

func updateCategoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		var req CategoryRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		category := &catalog.Category{
			ID:          id,
			Name:        req.Name,
			Color:       req.Color,
			Description: req.Description,
			ParentID:    req.ParentID,
		}
		if err := cfg.CatalogService.UpdateCategory(r.Context(), category); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		updated, err := cfg.CatalogService.GetCategory(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

func deleteCategoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "id")
		if !ok {
			return
		}
		if err := cfg.CatalogService.DeleteCategory(r.Context(), id); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
