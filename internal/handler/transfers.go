package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/landledger/internal/service"
)

// TransferHandler handles ownership transfers
type TransferHandler struct {
	transfers *service.TransferService
	logger    *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(transfers *service.TransferService, logger *slog.Logger) *TransferHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferHandler{transfers: transfers, logger: logger}
}

// List handles GET /api/transfers
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	transfers, err := h.transfers.History(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": transfers})
}

// Initiate handles POST /api/transfers/initiate
func (h *TransferHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req service.TransferInput
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.transfers.Initiate(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
