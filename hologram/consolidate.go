package hologram

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/holomem/hrr"
)

// Consolidation constants.
const (
	// RedundancyThreshold is the aggregate similarity above which two
	// capsules are considered duplicates of the same episode.
	RedundancyThreshold = 0.92

	// reinforcementShare is the fraction of a merged duplicate's importance
	// credited to the surviving capsule.
	reinforcementShare = 0.25

	// maxReinforcedImportance bounds importance growth from repeated merges.
	// An importance already above the cap is left alone.
	maxReinforcedImportance = 1.0
)

// ConsolidationResult reports what a consolidation pass changed.
type ConsolidationResult struct {
	Merged int
	Kept   int
}

// Consolidate merges capsules whose aggregate vectors are more similar than
// threshold (pass 0 for RedundancyThreshold). The earlier capsule survives
// and is reinforced with a share of the duplicate's importance, capped at
// 1.0; the later duplicate is evicted. Mutates the store; callers serialize
// as with any mutating call.
func (m *Memory) Consolidate(threshold float64) (ConsolidationResult, error) {
	if threshold <= 0 {
		threshold = RedundancyThreshold
	}

	merged := 0
	kept := make([]*Capsule, 0, len(m.capsules))
	for _, c := range m.capsules {
		var survivor *Capsule
		for _, k := range kept {
			sim, err := hrr.Similarity(k.aggregate, c.aggregate)
			if err != nil {
				return ConsolidationResult{}, fmt.Errorf("consolidate: %w", err)
			}
			if sim >= threshold {
				survivor = k
				break
			}
		}
		if survivor == nil {
			kept = append(kept, c)
			continue
		}
		if c.importance > survivor.importance {
			survivor.importance = c.importance
		}
		reinforced := survivor.importance + reinforcementShare*c.importance
		if reinforced > maxReinforcedImportance {
			reinforced = maxReinforcedImportance
		}
		if reinforced > survivor.importance {
			survivor.importance = reinforced
		}
		delete(m.byID, c.id)
		merged++
		m.logger.Debug("capsules merged",
			zap.String("survivor", survivor.id.String()),
			zap.String("duplicate", c.id.String()))
	}
	m.capsules = kept

	if merged > 0 {
		m.logger.Info("consolidation complete",
			zap.Int("merged", merged),
			zap.Int("kept", len(kept)))
	}
	return ConsolidationResult{Merged: merged, Kept: len(kept)}, nil
}
