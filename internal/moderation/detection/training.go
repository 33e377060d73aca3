package detection

import (
	"math"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
	"github.com/robalyx/chatguard/internal/moderation/policy"
)

// TrainingDecision returns the label of a detection record and whether it is
// worth keeping as a training sample, before deduplication.
//
// Manual decisions are always worthy. A spam vote from the high-trust
// detector at or above its floor is worthy and labels the sample spam even
// when other detectors disagree. Anything else is worthy only when the
// absolute net confidence reaches the strict bound.
func TrainingDecision(agg *types.AggregateResult, actor types.Actor, pol *policy.Policy) (enum.Verdict, bool) {
	verdict := agg.Verdict()

	if actor.IsManual() {
		return verdict, true
	}

	if pol.HighTrustDetector != "" {
		if r, ok := agg.Result(pol.HighTrustDetector); ok &&
			!r.Failed && r.Verdict == enum.VerdictSpam && r.Confidence >= pol.HighTrustFloor {
			return enum.VerdictSpam, true
		}
	}

	return verdict, math.Abs(agg.NetConfidence) >= pol.StrictBound
}
