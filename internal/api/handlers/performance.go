package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/portview/backend/internal/contracts"
	"github.com/portview/backend/internal/performance"
	"github.com/portview/backend/pkg/logger"
)

// PerformanceHandler handles performance chart API endpoints.
type PerformanceHandler struct {
	service          *performance.Service
	defaultBenchmark string
	logger           *logger.Logger
}

// NewPerformanceHandler creates a new performance handler.
func NewPerformanceHandler(service *performance.Service, defaultBenchmark string, log *logger.Logger) *PerformanceHandler {
	return &PerformanceHandler{
		service:          service,
		defaultBenchmark: defaultBenchmark,
		logger:           log,
	}
}

// GetPerformance returns portfolio and benchmark series for one range.
// GET /api/performance?benchmark=SPY&range=1Y
func (h *PerformanceHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "Missing X-User-ID header")
		return
	}

	benchmark := r.URL.Query().Get("benchmark")
	if benchmark == "" {
		benchmark = h.defaultBenchmark
	}

	rawRange := r.URL.Query().Get("range")
	if rawRange == "" {
		rawRange = string(contracts.Range1Y)
	}
	rng, err := contracts.ParseRange(rawRange)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid range (valid: 7D, 1M, 3M, 6M, YTD, 1Y, 3Y, 5Y, MAX)")
		return
	}

	result, err := h.service.GetPerformance(ctx, userID, benchmark, rng)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Refresh forces a rebuild of one cache entry, bypassing freshness checks.
// POST /api/performance/refresh?benchmark=SPY&range=1Y
func (h *PerformanceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "Missing X-User-ID header")
		return
	}

	benchmark := r.URL.Query().Get("benchmark")
	if benchmark == "" {
		benchmark = h.defaultBenchmark
	}

	rng, err := contracts.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid range (valid: 7D, 1M, 3M, 6M, YTD, 1Y, 3Y, 5Y, MAX)")
		return
	}

	if err := h.service.Refresh(ctx, userID, benchmark, rng); err != nil {
		h.writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "refreshed",
		"benchmark": benchmark,
		"range":     string(rng),
	})
}

// DeleteCache drops every cached entry for the requesting user.
// DELETE /api/performance/cache
func (h *PerformanceHandler) DeleteCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "Missing X-User-ID header")
		return
	}

	if err := h.service.DeleteForUser(ctx, userID); err != nil {
		h.logger.WithError(err).Error("Failed to delete cache entries")
		respondError(w, http.StatusInternalServerError, "Failed to delete cache entries")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PerformanceHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrInvalidRange):
		respondError(w, http.StatusBadRequest, "Invalid range")
	case errors.Is(err, contracts.ErrDataUnavailable):
		respondError(w, http.StatusServiceUnavailable, "Performance data unavailable")
	case errors.Is(err, contracts.ErrAlignment):
		h.logger.WithError(err).Error("Benchmark alignment failed")
		respondError(w, http.StatusBadGateway, "Benchmark price history unavailable")
	default:
		h.logger.WithError(err).Error("Failed to compute performance")
		respondError(w, http.StatusInternalServerError, "Failed to compute performance")
	}
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
