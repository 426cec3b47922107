package council

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sagespace/council/internal/llm"
	"github.com/sagespace/council/pkg/models"
)

// agentOutput is the structured shape every agent is instructed to
// emit from its deliberation call.
type agentOutput struct {
	Position   string   `json:"position"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
	References []string `json:"references"`
	Vote       string   `json:"vote"`
	Conditions []string `json:"conditions"`
	Blocking   bool     `json:"blocking"`
}

// parseAgentOutput is a total function from raw model text into the
// vote shape. Unparseable output falls back to abstain with the raw
// text captured as reasoning; it is never promoted to approve. The
// parsed flag reports whether the structured shape was recovered.
func parseAgentOutput(raw string) (agentOutput, bool) {
	var out agentOutput

	repaired, err := llm.DecodeJSON(raw, &out)
	if err != nil {
		log.Debug().Err(err).Msg("agent output not parseable, falling back to abstain")
		return abstainFallback(raw), false
	}
	if repaired {
		log.Debug().Msg("agent output JSON required repair")
	}

	parsed := true

	switch models.VoteChoice(strings.ToLower(strings.TrimSpace(out.Vote))) {
	case models.VoteApprove:
		out.Vote = string(models.VoteApprove)
	case models.VoteReject:
		out.Vote = string(models.VoteReject)
	case models.VoteConditional:
		out.Vote = string(models.VoteConditional)
	case models.VoteAbstain:
		out.Vote = string(models.VoteAbstain)
	default:
		// Unknown vote category: abstain, but keep the parsed
		// position and reasoning.
		out.Vote = string(models.VoteAbstain)
		parsed = false
	}

	if out.Vote != string(models.VoteConditional) {
		out.Conditions = nil
		out.Blocking = false
	}

	out.Confidence = clamp01(out.Confidence)

	if out.Reasoning == "" {
		out.Reasoning = out.Position
	}
	if out.Position == "" {
		out.Position = raw
	}

	return out, parsed
}

func abstainFallback(raw string) agentOutput {
	return agentOutput{
		Position:  raw,
		Reasoning: raw,
		Vote:      string(models.VoteAbstain),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
