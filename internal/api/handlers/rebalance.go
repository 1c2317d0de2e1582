package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/wonny/qualmom/internal/audit"
	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/logger"
)

// CycleStore reads the rebalance log (audit.Repository)
type CycleStore interface {
	LatestCycle(ctx context.Context) (*audit.CycleRecord, error)
	ListCycles(ctx context.Context, limit int) ([]*audit.CycleRecord, error)
}

// WeightReader reads the last traded vector (portfolio.Repository)
type WeightReader interface {
	LatestWeights(ctx context.Context) (*contracts.WeightVector, error)
}

// RebalanceHandler serves read-only rebalance state
// ⭐ SSOT: 리밸런스 조회 API 핸들러는 여기서만
type RebalanceHandler struct {
	cycles  CycleStore
	weights WeightReader
	logger  *logger.Logger
}

// NewRebalanceHandler creates a new rebalance handler
func NewRebalanceHandler(cycles CycleStore, weights WeightReader, log *logger.Logger) *RebalanceHandler {
	return &RebalanceHandler{
		cycles:  cycles,
		weights: weights,
		logger:  log,
	}
}

// GetLatest returns the most recent cycle
// GET /api/rebalance/latest
func (h *RebalanceHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	rec, err := h.cycles.LatestCycle(r.Context())
	if errors.Is(err, audit.ErrNoCycles) {
		respondError(w, http.StatusNotFound, "No rebalance cycles recorded")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest cycle")
		respondError(w, http.StatusInternalServerError, "Failed to get latest cycle")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// ListCycles returns recent cycles
// GET /api/rebalance/cycles?limit=20
func (h *RebalanceHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be in 1..500")
			return
		}
		limit = n
	}

	records, err := h.cycles.ListCycles(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list cycles")
		respondError(w, http.StatusInternalServerError, "Failed to list cycles")
		return
	}
	if records == nil {
		records = []*audit.CycleRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(records),
		"cycles": records,
	})
}

// GetWeights returns the last traded weight vector
// GET /api/rebalance/weights
func (h *RebalanceHandler) GetWeights(w http.ResponseWriter, r *http.Request) {
	vector, err := h.weights.LatestWeights(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest weights")
		respondError(w, http.StatusInternalServerError, "Failed to get latest weights")
		return
	}
	if vector == nil {
		respondError(w, http.StatusNotFound, "No weights traded yet")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":             vector.Date,
		"weights":          vector.Weights,
		"gross":            vector.Gross(),
		"equity_weight":    vector.EquityWeight(),
		"defensive_weight": vector.DefensiveWeight(),
	})
}
