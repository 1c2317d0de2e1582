package s1_universe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/logger"
)

// Exclusion reasons
const (
	ReasonBlank     = "blank identifier"
	ReasonDuplicate = "duplicate"
	ReasonExcluded  = "excluded by config"
)

// Config holds universe filter criteria
type Config struct {
	// Exclude keeps non-equity instruments (defensive basket, benchmark) out of
	// the equity selection even if the provider lists them.
	Exclude []contracts.Security `json:"exclude"`
}

// Saver persists universe snapshots for audit
type Saver interface {
	SaveUniverse(ctx context.Context, universe *contracts.UniverseSnapshot) error
}

// Builder constructs the investable universe (S1)
type Builder struct {
	provider contracts.DataProvider
	config   Config
	saver    Saver
	logger   *logger.Logger
}

// NewBuilder creates a new Universe Builder. saver may be nil.
func NewBuilder(provider contracts.DataProvider, config Config, saver Saver, log *logger.Logger) *Builder {
	return &Builder{
		provider: provider,
		config:   config,
		saver:    saver,
		logger:   log.WithStage(contracts.StageUniverse.String()),
	}
}

// Build delegates membership to the provider as of cycle.DataAsOf
// ⭐ SSOT: S1 → S2 유니버스 생성
func (b *Builder) Build(ctx context.Context, cycle contracts.Cycle) (*contracts.UniverseSnapshot, error) {
	securities, err := b.provider.Universe(ctx, cycle.DataAsOf)
	if err != nil {
		return nil, contracts.NewDataUnavailable(contracts.StageUniverse, "", cycle.DataAsOf, err)
	}

	universe := &contracts.UniverseSnapshot{
		Date:       cycle.Date,
		DataAsOf:   cycle.DataAsOf,
		Securities: make([]contracts.Security, 0, len(securities)),
		Excluded:   make(map[contracts.Security]string),
	}

	seen := make(map[contracts.Security]bool, len(securities))
	for _, sec := range securities {
		reason := b.checkExclusion(sec, seen)
		if reason != "" {
			if sec != "" {
				universe.Excluded[sec] = reason
			}
			continue
		}
		seen[sec] = true
		universe.Securities = append(universe.Securities, sec)
	}

	if universe.Count() == 0 {
		return nil, contracts.NewDataUnavailable(contracts.StageUniverse, "", cycle.DataAsOf,
			fmt.Errorf("empty universe (%d listed, %d excluded)", len(securities), len(universe.Excluded)))
	}

	if b.saver != nil {
		if err := b.saver.SaveUniverse(ctx, universe); err != nil {
			b.logger.WithError(err).Warn("Failed to save universe snapshot")
		}
	}

	b.logger.WithFields(map[string]interface{}{
		"as_of":    cycle.DataAsOf.Format(time.DateOnly),
		"listed":   len(securities),
		"eligible": universe.Count(),
		"excluded": len(universe.Excluded),
	}).Info("Universe built")

	return universe, nil
}

// checkExclusion returns the exclusion reason ("" if eligible)
func (b *Builder) checkExclusion(sec contracts.Security, seen map[contracts.Security]bool) string {
	if strings.TrimSpace(string(sec)) == "" {
		return ReasonBlank
	}
	if seen[sec] {
		return ReasonDuplicate
	}
	for _, ex := range b.config.Exclude {
		if ex == sec {
			return ReasonExcluded
		}
	}
	return ""
}
