package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
)

// CachePurger drops every cached directory link.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// PurgeResponse reports how many cache entries were dropped.
type PurgeResponse struct {
	Purged int64 `json:"purged"`
}

// DirectoryHandler manages the entity directory cache.
type DirectoryHandler struct {
	cache  CachePurger
	logger logging.Logger
}

// NewDirectoryHandler creates a DirectoryHandler.
func NewDirectoryHandler(cache CachePurger, logger logging.Logger) *DirectoryHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DirectoryHandler{cache: cache, logger: logger.Named("directory_handler")}
}

// RegisterRoutes mounts the directory endpoints on r.
func (h *DirectoryHandler) RegisterRoutes(r chi.Router) {
	r.Delete("/directory/cache", h.PurgeCache)
}

// PurgeCache handles DELETE /api/v1/directory/cache.
func (h *DirectoryHandler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Purge(r.Context())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Purged: n})
}
