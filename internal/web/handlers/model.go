package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// ModelHandler exposes model status and rebuilds to administrators
type ModelHandler struct {
	model  ModelManager
	logger *zap.Logger
}

// NewModelHandler creates a new model handler
func NewModelHandler(model ModelManager, logger *zap.Logger) *ModelHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelHandler{model: model, logger: logger}
}

// Status returns the active model
func (h *ModelHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.model.Status())
}

// RebuildResponse summarizes a rebuild
type RebuildResponse struct {
	Records     int     `json:"records"`
	Samples     int     `json:"samples"`
	Skipped     int     `json:"skipped"`
	Components  int     `json:"components"`
	Version     uint64  `json:"version"`
	Initialized bool    `json:"initialized"`
	DurationMs  float64 `json:"duration_ms"`
}

// Rebuild retrains the model from every stored enrollment image
func (h *ModelHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := h.model.Rebuild(r.Context())
	if err != nil {
		h.logger.Error("model rebuild failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "rebuild failed")
		return
	}
	respondJSON(w, http.StatusOK, RebuildResponse{
		Records:     stats.Records,
		Samples:     stats.Samples,
		Skipped:     stats.Skipped,
		Components:  stats.Components,
		Version:     stats.Version,
		Initialized: stats.Initialized,
		DurationMs:  float64(stats.Duration.Microseconds()) / 1000,
	})
}
