package council

import (
	"fmt"
	"strings"

	"github.com/sagespace/council/pkg/models"
)

// deliberationSystemPrompt frames the agent's persona for a reasoning
// call.
func deliberationSystemPrompt(agent models.Agent) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("You are %s, serving on a deliberation council. Your role: %s.\n", agent.Name, agent.Role))
	if len(agent.Expertise) > 0 {
		prompt.WriteString(fmt.Sprintf("Your areas of expertise: %s.\n", strings.Join(agent.Expertise, ", ")))
	}
	prompt.WriteString("Reason carefully from your own perspective. Other council members deliberate independently; do not assume their positions.\n")

	return prompt.String()
}

// deliberationPrompt carries the shared query plus the structured
// output contract every agent must follow.
func deliberationPrompt(query, queryType string) string {
	var prompt strings.Builder

	prompt.WriteString("The council has been convened to deliberate on the following query.\n\n")
	prompt.WriteString(fmt.Sprintf("Query type: %s\n", queryType))
	prompt.WriteString(fmt.Sprintf("Query: %s\n\n", query))

	prompt.WriteString("Produce your position and formal vote. Format your response as JSON with the following structure:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"position\": \"Your position statement on the query\",\n")
	prompt.WriteString("  \"reasoning\": \"The reasoning behind your position\",\n")
	prompt.WriteString("  \"confidence\": 0.0,\n")
	prompt.WriteString("  \"references\": [\"Optional: sources or principles you cite\"],\n")
	prompt.WriteString("  \"vote\": \"approve|reject|abstain|conditional\",\n")
	prompt.WriteString("  \"conditions\": [\"Only when vote is conditional: the conditions that must hold\"],\n")
	prompt.WriteString("  \"blocking\": false\n")
	prompt.WriteString("}\n")
	prompt.WriteString("```\n\n")

	prompt.WriteString("VOTE RULES:\n")
	prompt.WriteString("- \"confidence\" is a number between 0 and 1.\n")
	prompt.WriteString("- Vote \"conditional\" only when you would approve if specific, nameable conditions were met; list them in \"conditions\".\n")
	prompt.WriteString("- Set \"blocking\": true when your conditions MUST be satisfied before the query can proceed.\n")
	prompt.WriteString("- Vote \"abstain\" when the query falls outside your expertise.\n")

	return prompt.String()
}
