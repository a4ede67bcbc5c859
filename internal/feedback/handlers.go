package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/model"
)

// StatsProvider exposes engine statistics to the HTTP surface.
// Satisfied by the taste engine.
type StatsProvider interface {
	Stats(ctx context.Context) (model.TasteStats, error)
}

// Handlers exposes the feedback boundary over plain HTTP for hosts that
// want it. Routing beyond these two endpoints belongs to the host process.
type Handlers struct {
	sync   *Sync
	queue  *Queue
	stats  StatsProvider
	logger *zap.Logger
}

// NewHandlers creates the HTTP surface for the sync boundary.
func NewHandlers(sync *Sync, queue *Queue, stats StatsProvider, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{sync: sync, queue: queue, stats: stats, logger: logger}
}

// RegisterMux registers feedback routes on a standard ServeMux with explicit
// method+path patterns.
func (h *Handlers) RegisterMux(mux *http.ServeMux, basePath string) {
	bp := strings.TrimRight(basePath, "/")
	mux.HandleFunc("POST "+bp+"/submit", h.handleSubmit)
	mux.HandleFunc("GET "+bp+"/stats", h.handleStats)
}

type submitRequest struct {
	Items []model.FeedbackExample `json:"items"`
}

func (h *Handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, SubmitResult{Message: "invalid JSON: " + err.Error()})
		return
	}

	result, err := h.sync.Submit(r.Context(), req.Items)
	if err != nil {
		// Fail closed with an explicit error so the caller can retry.
		writeJSON(w, http.StatusUnprocessableEntity, SubmitResult{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type statsResponse struct {
	model.TasteStats
	PendingFeedback int `json:"pending_feedback"`
}

func (h *Handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.stats.Stats(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, SubmitResult{Message: err.Error()})
		return
	}
	pending, err := h.queue.PendingCount(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, SubmitResult{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{TasteStats: stats, PendingFeedback: pending})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
