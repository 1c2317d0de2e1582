package handlers

import (
	"net/http"

	"github.com/wonny/qualmom/internal/strategyconfig"
)

// StrategyHandler exposes the loaded strategy config
type StrategyHandler struct {
	snapshot *strategyconfig.DecisionSnapshot
	warnings []strategyconfig.Warning
}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler(snapshot *strategyconfig.DecisionSnapshot, warnings []strategyconfig.Warning) *StrategyHandler {
	return &StrategyHandler{snapshot: snapshot, warnings: warnings}
}

// GetStrategy returns the config, its hash and any warnings
// GET /api/strategy
func (h *StrategyHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	warnings := h.warnings
	if warnings == nil {
		warnings = []strategyconfig.Warning{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategy_id": h.snapshot.StrategyID,
		"version":     h.snapshot.Version,
		"config_hash": h.snapshot.ConfigHash,
		"config":      h.snapshot.Config,
		"warnings":    warnings,
	})
}
