package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
)

// AnnotationService is the part of the annotation service the API exposes.
type AnnotationService interface {
	Parse(ctx context.Context, req lore_parser.ParseRequest) (lore_parser.ParseResponse, error)
	Projects() []string
	Invalidate(project string) error
}

// ExtractRequest is the body of POST /api/v1/extract.
type ExtractRequest struct {
	Text string `json:"text"`
}

// ExtractResponse lists the quick-extract candidates in match order.
type ExtractResponse struct {
	Candidates []lore_parser.EntityCandidate `json:"candidates"`
}

// ProjectsResponse lists the project ids with a cached parser.
type ProjectsResponse struct {
	Projects []string `json:"projects"`
}

// AnnotationHandler serves the parse, extract and project cache endpoints.
type AnnotationHandler struct {
	svc          AnnotationService
	logger       logging.Logger
	maxBodyBytes int64
}

// NewAnnotationHandler creates an AnnotationHandler.  Bodies larger than
// maxBodyBytes are rejected; zero disables the limit.
func NewAnnotationHandler(svc AnnotationService, logger logging.Logger, maxBodyBytes int64) *AnnotationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AnnotationHandler{
		svc:          svc,
		logger:       logger.Named("annotation_handler"),
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes mounts the annotation endpoints on r.
func (h *AnnotationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/parse", h.Parse)
	r.Post("/extract", h.Extract)
	r.Route("/projects", func(pr chi.Router) {
		pr.Get("/", h.ListProjects)
		pr.Delete("/{projectID}/cache", h.InvalidateProject)
	})
}

// Parse handles POST /api/v1/parse.
func (h *AnnotationHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req lore_parser.ParseRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	resp, err := h.svc.Parse(r.Context(), req)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if resp.Hits == nil {
		resp.Hits = []lore_parser.EntityHit{}
	}
	if resp.Tokens == nil {
		resp.Tokens = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Extract handles POST /api/v1/extract.
func (h *AnnotationHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	candidates := lore_parser.QuickExtract(req.Text)
	if candidates == nil {
		candidates = []lore_parser.EntityCandidate{}
	}
	writeJSON(w, http.StatusOK, ExtractResponse{Candidates: candidates})
}

// ListProjects handles GET /api/v1/projects.
func (h *AnnotationHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects := h.svc.Projects()
	if projects == nil {
		projects = []string{}
	}
	writeJSON(w, http.StatusOK, ProjectsResponse{Projects: projects})
}

// InvalidateProject handles DELETE /api/v1/projects/{projectID}/cache.
func (h *AnnotationHandler) InvalidateProject(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "projectID")
	if err := h.svc.Invalidate(project); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	h.logger.Info("project cache invalidated", logging.String("project", project))
	w.WriteHeader(http.StatusNoContent)
}
