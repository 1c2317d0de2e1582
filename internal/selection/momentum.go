package selection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/logger"
)

// MomentumConfig defines the number of equity slots
type MomentumConfig struct {
	TargetSecurities int `json:"target_securities"`
}

// DefaultMomentumConfig returns five equity slots
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{TargetSecurities: 5}
}

// MomentumSelector implements S4: momentum gate on the quality shortlist
// ⭐ SSOT: S4 모멘텀 선별 로직은 여기서만
type MomentumSelector struct {
	config MomentumConfig
	logger *logger.Logger
}

// NewMomentumSelector creates a new momentum selector
func NewMomentumSelector(config MomentumConfig, log *logger.Logger) *MomentumSelector {
	return &MomentumSelector{
		config: config,
		logger: log.WithStage(contracts.StageMomentum.String()),
	}
}

// Select keeps the top TargetSecurities of the shortlist by momentum
// (descending, ties in shortlist order). Missing momentum is excluded.
func (s *MomentumSelector) Select(ctx context.Context, date time.Time, shortlist []contracts.ScoredSecurity) (*contracts.TargetHoldings, error) {
	if s.config.TargetSecurities <= 0 {
		return nil, fmt.Errorf("target_securities must be > 0, got %d", s.config.TargetSecurities)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]contracts.ScoredSecurity, 0, len(shortlist))
	for _, sc := range shortlist {
		if sc.Momentum.Valid {
			candidates = append(candidates, sc)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Momentum.Value > candidates[j].Momentum.Value
	})

	if len(candidates) > s.config.TargetSecurities {
		candidates = candidates[:s.config.TargetSecurities]
	}

	holdings := &contracts.TargetHoldings{
		Date:       date,
		Securities: make([]contracts.Security, len(candidates)),
	}
	for i, c := range candidates {
		holdings.Securities[i] = c.Security
	}

	s.logger.WithFields(map[string]interface{}{
		"shortlist":        len(shortlist),
		"missing_momentum": len(shortlist) - countWithMomentum(shortlist),
		"selected":         holdings.Securities,
	}).Info("Momentum selection completed")

	return holdings, nil
}

func countWithMomentum(shortlist []contracts.ScoredSecurity) int {
	n := 0
	for _, sc := range shortlist {
		if sc.Momentum.Valid {
			n++
		}
	}
	return n
}
