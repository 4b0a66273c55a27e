package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/infrastructure/objectstore"
	"github.com/aryan0dhankhar/landledger/internal/service"
)

// DocumentPresigner issues upload URLs for verification documents
type DocumentPresigner interface {
	PresignDocumentUpload(ctx context.Context, landID, contentType string) (*objectstore.Upload, error)
}

// LandHandler handles parcel registration and lookup
type LandHandler struct {
	lands     *service.LandService
	presigner DocumentPresigner
	logger    *slog.Logger
}

// NewLandHandler creates a new land handler. presigner may be nil when object
// storage is not configured.
func NewLandHandler(lands *service.LandService, presigner DocumentPresigner, logger *slog.Logger) *LandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LandHandler{lands: lands, presigner: presigner, logger: logger}
}

// LandsResponse is the owner's parcel list
type LandsResponse struct {
	Lands []*domain.Land `json:"lands"`
	Count int            `json:"count"`
}

// UploadURLRequest optionally names the content type of the upload
type UploadURLRequest struct {
	ContentType string `json:"contentType"`
}

// Register handles POST /api/lands/register
func (h *LandHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req service.LandInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	land, err := h.lands.RegisterLand(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"land": land})
}

// MyLands handles GET /api/lands/my-lands, newest registration first
func (h *LandHandler) MyLands(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	lands, err := h.lands.ListMyLands(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	slices.SortStableFunc(lands, func(a, b *domain.Land) int {
		return b.RegisteredAt.Compare(a.RegisteredAt)
	})
	writeJSON(w, http.StatusOK, LandsResponse{Lands: lands, Count: len(lands)})
}

// Get handles GET /api/lands/{id}
func (h *LandHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	land, err := h.lands.GetLand(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"land": land})
}

// UploadURL handles POST /api/lands/{id}/documents/upload-url
func (h *LandHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if h.presigner == nil {
		writeError(w, http.StatusServiceUnavailable, "document storage is not configured")
		return
	}

	land, err := h.lands.GetLand(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if land.OwnerID != actor.ID {
		writeError(w, http.StatusForbidden, "only the owner can upload documents")
		return
	}

	var req UploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	upload, err := h.presigner.PresignDocumentUpload(r.Context(), land.ID, req.ContentType)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}
