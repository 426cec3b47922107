package collab

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sagespace/council/internal/llm"
	"github.com/sagespace/council/pkg/models"
)

// detection is the structured verdict of the collaboration check.
type detection struct {
	Needed            bool     `json:"collaboration_needed"`
	Thresholds        []string `json:"thresholds"`
	RecommendedAgents []string `json:"recommended_agents"`
	Reason            string   `json:"reason"`
}

// detect asks whether the query warrants multi-agent input. It fails
// closed: a failing or unparseable detection call means no
// collaboration, never an accidental fan-out.
func (s *Service) detect(ctx context.Context, query string, primary models.Agent, available []models.Agent) detection {
	response, err := s.client.Generate(ctx, llm.Request{
		System: agentSystemPrompt(primary),
		Prompt: detectPrompt(query, primary, available),
	})
	if err != nil {
		log.Warn().Err(err).Str("agent", primary.Name).Msg("collaboration detection call failed, skipping collaboration")
		return detection{}
	}

	var d detection
	if _, err := llm.DecodeJSON(response, &d); err != nil {
		log.Info().Err(err).Msg("collaboration detection output unparseable, skipping collaboration")
		return detection{}
	}

	return d
}

// selectCollaborators resolves the detector's recommended names against
// the available roster, matching on name or role, case-insensitive. If
// nothing matches, it falls back to the top agents by harmony score.
// The primary agent is never its own collaborator.
func selectCollaborators(d detection, primary models.Agent, available []models.Agent, fallbackN int) []models.Agent {
	candidates := make([]models.Agent, 0, len(available))
	for _, a := range available {
		if a.ID != primary.ID {
			candidates = append(candidates, a)
		}
	}

	var matched []models.Agent
	for _, a := range candidates {
		for _, name := range d.RecommendedAgents {
			want := strings.ToLower(strings.TrimSpace(name))
			if want == "" {
				continue
			}
			if strings.ToLower(a.Name) == want || strings.ToLower(a.Role) == want {
				matched = append(matched, a)
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].HarmonyScore > candidates[j].HarmonyScore
	})
	if len(candidates) > fallbackN {
		candidates = candidates[:fallbackN]
	}
	return candidates
}
