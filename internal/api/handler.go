// internal/api/handler.go
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/rs/cors"

	"project-sync/internal/database"
	"project-sync/internal/model"
)

// Handler is the container for API dependencies.
type Handler struct {
	db             database.Querier
	logger         *slog.Logger
	staleAfter     time.Duration
	allowedOrigins []string
	now            func() time.Time
}

// NewRouter creates and configures a new chi router with all API routes.
// CORS is enabled only when allowedOrigins is non-empty.
func NewRouter(db database.Querier, logger *slog.Logger, staleAfter time.Duration, allowedOrigins []string) http.Handler {
	h := &Handler{
		db:             db,
		logger:         logger,
		staleAfter:     staleAfter,
		allowedOrigins: allowedOrigins,
		now:            time.Now,
	}
	return h.routes()
}

func (h *Handler) routes() http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if len(h.allowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: h.allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}).Handler)
	}

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1/projects", func(r chi.Router) {
		r.Get("/", h.listProjects)
		r.Post("/", h.createProject)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getProject)
			r.Patch("/", h.updateProject)
			r.Delete("/", h.deleteProject)
			r.Put("/api", h.linkProject)
			r.Delete("/api", h.unlinkProject)
			r.Get("/fetch-status", h.getFetchStatus)
		})
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listProjects handles the request to list every registered project.
// GET /v1/projects
func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.ListProjects(r.Context())
	if err != nil {
		h.logger.Error("Failed to list projects", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	projects := database.ProjectsFromRows(rows, func(id model.ProjectID, err error) {
		h.logger.Error("Skipping unreadable project record", "project_id", id.String(), "error", err)
	})

	out := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.Redacted())
	}
	respondWithJSON(w, http.StatusOK, out)
}

// createProject registers a new project.
// POST /v1/projects
func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" || req.Path == "" {
		respondWithError(w, http.StatusBadRequest, "'title' and 'path' are required")
		return
	}
	key, err := parseKey(req.PreferredKey)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := &model.Project{
		ID:           model.NewProjectID(),
		Title:        req.Title,
		Description:  emptyToNil(req.Description),
		Path:         req.Path,
		PreferredKey: key,
	}
	params, err := database.CreateParamsFromProject(p)
	if err != nil {
		h.logger.Error("Failed to encode project", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	row, err := h.db.CreateProject(r.Context(), params)
	if database.IsUniqueViolation(err) {
		respondWithError(w, http.StatusConflict, "A project with this path already exists")
		return
	}
	if err != nil {
		h.logger.Error("Failed to create project", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.respondWithRow(w, http.StatusCreated, row)
}

// getProject returns a single project.
// GET /v1/projects/{id}
func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, p.Redacted())
}

// updateProject edits title, description or preferred key. Omitted fields are left unchanged.
// PATCH /v1/projects/{id}
func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			respondWithError(w, http.StatusBadRequest, "'title' must not be empty")
			return
		}
		p.Title = *req.Title
	}
	if req.Description != nil {
		p.Description = emptyToNil(*req.Description)
	}
	if len(req.PreferredKey) > 0 {
		key, err := parseKey(req.PreferredKey)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		p.PreferredKey = keepMaskedPassphrase(key, p.PreferredKey)
	}

	params, err := database.DetailsParamsFromProject(p)
	if err != nil {
		h.logger.Error("Failed to encode project", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	row, err := h.db.UpdateProjectDetails(r.Context(), params)
	if err != nil {
		h.handleDBError(w, "Failed to update project", err)
		return
	}
	h.respondWithRow(w, http.StatusOK, row)
}

// deleteProject removes a project from the registry.
// DELETE /v1/projects/{id}
func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	n, err := h.db.DeleteProject(r.Context(), database.UUID(id))
	if err != nil {
		h.logger.Error("Failed to delete project", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if n == 0 {
		respondWithError(w, http.StatusNotFound, "Project not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// linkProject stores the remote service's snapshot of the project.
// PUT /v1/projects/{id}/api
func (h *Handler) linkProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req linkProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.GitURL == "" {
		respondWithError(w, http.StatusBadRequest, "'gitUrl' is required")
		return
	}

	p, err := database.SetAPI(r.Context(), h.db, id, req.snapshot())
	if err != nil {
		h.handleDBError(w, "Failed to link project", err)
		return
	}
	respondWithJSON(w, http.StatusOK, p.Redacted())
}

// unlinkProject clears the remote snapshot.
// DELETE /v1/projects/{id}/api
func (h *Handler) unlinkProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := database.SetAPI(r.Context(), h.db, id, nil)
	if err != nil {
		h.handleDBError(w, "Failed to unlink project", err)
		return
	}
	respondWithJSON(w, http.StatusOK, p.Redacted())
}

// getFetchStatus reports the last known sync health of both channels.
// GET /v1/projects/{id}/fetch-status
func (h *Handler) getFetchStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	now := h.now()
	resp := fetchStatusResponse{
		ProjectID:   p.ID.String(),
		SyncEnabled: p.API != nil && p.API.Sync,
		Channels:    make(map[model.SyncChannel]channelStatus, len(model.Channels)),
	}
	for _, ch := range model.Channels {
		resp.Channels[ch] = newChannelStatus(p.LastFetch(ch), now, h.staleAfter)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadProject(w http.ResponseWriter, r *http.Request) (*model.Project, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return nil, false
	}
	row, err := h.db.GetProject(r.Context(), database.UUID(id))
	if err != nil {
		h.handleDBError(w, "Failed to get project", err)
		return nil, false
	}
	p, err := database.ProjectFromRow(row)
	if err != nil {
		h.logger.Error("Failed to decode project", "project_id", id.String(), "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	return p, true
}

func (h *Handler) respondWithRow(w http.ResponseWriter, code int, row database.Project) {
	p, err := database.ProjectFromRow(row)
	if err != nil {
		h.logger.Error("Failed to decode project", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, code, p.Redacted())
}

func (h *Handler) handleDBError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		respondWithError(w, http.StatusNotFound, "Project not found")
		return
	}
	h.logger.Error(msg, "error", err)
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

func parseID(w http.ResponseWriter, r *http.Request) (model.ProjectID, bool) {
	id, err := model.ParseProjectID(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid project id")
		return model.ProjectID{}, false
	}
	return id, true
}
