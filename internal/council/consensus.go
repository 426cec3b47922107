package council

import (
	"fmt"

	"github.com/sagespace/council/pkg/models"
)

// WeightPolicy selects how vote weights are assigned.
type WeightPolicy string

const (
	// WeightFlat gives every vote weight 1.0. This is the default.
	WeightFlat WeightPolicy = "flat"
	// WeightHarmony derives the weight from the agent's harmony score
	// (score/100, floored at 0.05 so a low-harmony agent still counts
	// in the denominator).
	WeightHarmony WeightPolicy = "harmony"
)

// ParseWeightPolicy validates a policy label.
func ParseWeightPolicy(s string) (WeightPolicy, error) {
	switch WeightPolicy(s) {
	case WeightFlat, WeightHarmony:
		return WeightPolicy(s), nil
	case "":
		return WeightFlat, nil
	}
	return "", fmt.Errorf("%w: unknown weight policy %q", ErrInvalidConfiguration, s)
}

func voteWeight(policy WeightPolicy, agent models.Agent) float64 {
	switch policy {
	case WeightHarmony:
		w := agent.HarmonyScore / 100
		if w < 0.05 {
			w = 0.05
		}
		if w > 1 {
			w = 1
		}
		return w
	default:
		return 1.0
	}
}

// Tally aggregates weighted votes into a VoteResult.
//
// Weighted approval = sum of weights of approve votes plus
// non-blocking conditional votes, divided by the sum of all weights.
// A blocking conditional vote stays in the denominator but never
// contributes to the numerator. Consensus is reached when weighted
// approval >= threshold. The aggregation is deterministic for the same
// inputs.
func Tally(votes []models.Vote, threshold float64) models.VoteResult {
	if len(votes) == 0 {
		return models.VoteResult{}
	}

	result := models.VoteResult{
		SessionID:  votes[0].SessionID,
		TotalVotes: len(votes),
	}

	var approvalWeight, totalWeight float64
	for _, v := range votes {
		totalWeight += v.Weight

		switch v.Choice {
		case models.VoteApprove:
			result.Approvals++
			approvalWeight += v.Weight
		case models.VoteReject:
			result.Rejections++
		case models.VoteConditional:
			result.Conditionals++
			if !v.Blocking {
				approvalWeight += v.Weight
			}
		default:
			result.Abstentions++
		}
	}

	if totalWeight > 0 {
		result.WeightedApproval = approvalWeight / totalWeight
	}
	result.ConsensusReached = result.WeightedApproval >= threshold

	return result
}

// statusFor maps a tally onto the terminal session status, given that
// at least one vote exists.
func statusFor(result models.VoteResult) models.SessionStatus {
	if result.ConsensusReached {
		return models.StatusConsensusReached
	}
	return models.StatusNoConsensus
}

// recommendation synthesizes the final recommendation text from the
// tally. Wording is deterministic for the same inputs.
func recommendation(result models.VoteResult, status models.SessionStatus, threshold float64) string {
	switch status {
	case models.StatusConsensusReached:
		return fmt.Sprintf("Approved by council: %d of %d votes in favor, weighted approval %.2f (threshold %.2f)",
			result.Approvals+result.Conditionals, result.TotalVotes, result.WeightedApproval, threshold)
	case models.StatusNoConsensus:
		return fmt.Sprintf("Rejected: insufficient consensus, weighted approval %.2f below threshold %.2f",
			result.WeightedApproval, threshold)
	default:
		return "Council failed: no agents produced a vote"
	}
}
