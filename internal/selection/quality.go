package selection

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/logger"
)

// QualityConfig defines the quality shortlist size
type QualityConfig struct {
	TopQualityQty int `json:"top_quality_qty"`
}

// DefaultQualityConfig returns the trend-variant shortlist size
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{TopQualityQty: 50}
}

// QualityRanker implements S3: composite quality ranking
// ⭐ SSOT: S3 퀄리티 랭킹 로직은 여기서만
type QualityRanker struct {
	config QualityConfig
	logger *logger.Logger
}

// NewQualityRanker creates a new quality ranker
func NewQualityRanker(config QualityConfig, log *logger.Logger) *QualityRanker {
	return &QualityRanker{
		config: config,
		logger: log.WithStage(contracts.StageQuality.String()),
	}
}

// Rank returns the top TopQualityQty securities by QualityScore (descending,
// ties in universe order), intersected with the rows that carry all four
// fundamentals. Fewer than TopQualityQty survivors is not an error.
func (r *QualityRanker) Rank(ctx context.Context, factors *contracts.FactorSet) ([]contracts.ScoredSecurity, error) {
	if r.config.TopQualityQty <= 0 {
		return nil, fmt.Errorf("top_quality_qty must be > 0, got %d", r.config.TopQualityQty)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := factors.Rows
	scores := QualityScores(rows)

	order := make([]int, 0, len(rows))
	for i, s := range scores {
		if s.Valid {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]].Value > scores[order[b]].Value
	})

	if len(order) > r.config.TopQualityQty {
		order = order[:r.config.TopQualityQty]
	}

	shortlist := make([]contracts.ScoredSecurity, 0, len(order))
	for pos, i := range order {
		// completeness gate on the top-K set
		if !rows[i].Complete() {
			continue
		}
		shortlist = append(shortlist, contracts.ScoredSecurity{
			Security:     rows[i].Security,
			QualityScore: scores[i].Value,
			QualityRank:  pos + 1,
			Momentum:     rows[i].Momentum,
		})
	}

	r.logger.WithFields(map[string]interface{}{
		"rows":      len(rows),
		"scored":    countValid(scores),
		"top_k":     r.config.TopQualityQty,
		"shortlist": len(shortlist),
	}).Info("Quality ranking completed")

	return shortlist, nil
}

func countValid(values []contracts.FactorValue) int {
	n := 0
	for _, v := range values {
		if v.Valid {
			n++
		}
	}
	return n
}
