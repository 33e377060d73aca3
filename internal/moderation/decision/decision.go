package decision

import (
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
)

// Decide maps an aggregate result to an action tier.
//
// Critical violations always win. Otherwise the net confidence is compared
// against the auto-ban and review thresholds, both inclusive.
func Decide(agg *types.AggregateResult, autoBanThreshold, reviewThreshold float64) enum.Tier {
	if agg == nil {
		return enum.TierPass
	}

	if agg.HasViolations() {
		return enum.TierDeleteAndNotify
	}

	if agg.Skipped {
		return enum.TierPass
	}

	switch {
	case agg.NetConfidence >= autoBanThreshold:
		return enum.TierAutoBan
	case agg.NetConfidence >= reviewThreshold:
		return enum.TierReview
	default:
		return enum.TierPass
	}
}
