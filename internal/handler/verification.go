package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/landledger/internal/verification"
)

const streamPingInterval = 15 * time.Second

// VerificationHandler drives the four-stage verification flow
type VerificationHandler struct {
	runner         *verification.Runner
	logger         *slog.Logger
	allowedOrigins []string
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(runner *verification.Runner, logger *slog.Logger, allowedOrigins []string) *VerificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationHandler{runner: runner, logger: logger, allowedOrigins: allowedOrigins}
}

// Select handles POST /api/lands/verify/{landId}
func (h *VerificationHandler) Select(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	land, err := h.runner.Select(r.Context(), actor, r.PathValue("landId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"land": land})
}

// StartStage handles POST /api/verification/stages/{stage}
func (h *VerificationHandler) StartStage(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	stage, err := verification.ParseStage(r.PathValue("stage"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var input verification.StageInput
	if err := decodeJSON(r, &input); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	task, err := h.runner.Start(r.Context(), actor, stage, input)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"task": task})
}

// Current handles GET /api/verification/current
func (h *VerificationHandler) Current(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.runner.Current(actor.ID))
}

func (h *VerificationHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if slices.Contains(h.allowedOrigins, origin) || slices.Contains(h.allowedOrigins, "*") {
				return true
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// Stream handles GET /ws/verification. It pushes the current status, then every
// runner event for the caller until either side goes away.
func (h *VerificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	events, unsubscribe := h.runner.Subscribe(actor.ID)
	defer unsubscribe()

	if err := ws.WriteJSON(h.runner.Current(actor.ID)); err != nil {
		return
	}

	// reader drains control frames and notices the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(time.Second))
				return
			}
			if err := ws.WriteJSON(ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket closed", slog.String("user_id", actor.ID))
				}
				return
			}
		case <-ticker.C:
			_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
