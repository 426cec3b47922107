package collab

import (
	"fmt"
	"strings"

	"github.com/sagespace/council/pkg/models"
)

func agentSystemPrompt(agent models.Agent) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("You are %s. Your role: %s.\n", agent.Name, agent.Role))
	if len(agent.Expertise) > 0 {
		prompt.WriteString(fmt.Sprintf("Your areas of expertise: %s.\n", strings.Join(agent.Expertise, ", ")))
	}

	return prompt.String()
}

// detectPrompt asks whether a query crosses a threshold that warrants
// pulling in other agents.
func detectPrompt(query string, primary models.Agent, available []models.Agent) string {
	var prompt strings.Builder

	prompt.WriteString("Decide whether the following query warrants input from agents beyond the primary one.\n")
	prompt.WriteString("Collaboration is warranted when the query crosses a moral, technical, creative, safety, or complexity threshold that exceeds a single agent's scope.\n\n")
	prompt.WriteString(fmt.Sprintf("Query: %s\n\n", query))
	prompt.WriteString(fmt.Sprintf("Primary agent: %s (%s)\n", primary.Name, primary.Role))

	if len(available) > 0 {
		prompt.WriteString("Available agents:\n")
		for _, a := range available {
			if a.ID == primary.ID {
				continue
			}
			prompt.WriteString(fmt.Sprintf("- %s (%s)\n", a.Name, a.Role))
		}
	}

	prompt.WriteString("\nRespond as JSON:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"collaboration_needed\": false,\n")
	prompt.WriteString("  \"thresholds\": [\"Which thresholds the query crosses, if any\"],\n")
	prompt.WriteString("  \"recommended_agents\": [\"Names of agents worth consulting\"],\n")
	prompt.WriteString("  \"reason\": \"One sentence explaining the decision\"\n")
	prompt.WriteString("}\n")
	prompt.WriteString("```\n")

	return prompt.String()
}

// initiatePrompt has the primary agent frame the collaboration request
// it will broadcast.
func initiatePrompt(query string) string {
	var prompt strings.Builder

	prompt.WriteString("You have decided this query needs input from other agents:\n\n")
	prompt.WriteString(fmt.Sprintf("Query: %s\n\n", query))
	prompt.WriteString("Write a short broadcast message to the other agents: state the query, what kind of input you need, and why their perspective matters. Plain text, no JSON.\n")

	return prompt.String()
}

func respondPrompt(query, broadcast string, primary models.Agent) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("%s (%s) has asked for your input on a query.\n\n", primary.Name, primary.Role))
	prompt.WriteString(fmt.Sprintf("Query: %s\n\n", query))
	prompt.WriteString(fmt.Sprintf("Their request:\n%s\n\n", broadcast))
	prompt.WriteString("Give your perspective from your own expertise. Be concrete and concise. Plain text, no JSON.\n")

	return prompt.String()
}

// synthesizePrompt hands the primary agent every collaborator response
// and asks for the final outcome.
func synthesizePrompt(query string, responses []models.CollaborationMessage) string {
	var prompt strings.Builder

	prompt.WriteString("You asked other agents for input on this query:\n\n")
	prompt.WriteString(fmt.Sprintf("Query: %s\n\n", query))

	if len(responses) == 0 {
		prompt.WriteString("No collaborator responses arrived. Synthesize the best outcome you can from your own perspective.\n\n")
	} else {
		prompt.WriteString("Their responses:\n\n")
		for _, r := range responses {
			prompt.WriteString(fmt.Sprintf("--- %s ---\n%s\n\n", r.FromAgent, r.Content))
		}
	}

	prompt.WriteString("Synthesize a final outcome. Respond as JSON:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"outcome\": \"The synthesized answer to the query\",\n")
	prompt.WriteString("  \"confidence\": 0.0,\n")
	prompt.WriteString("  \"consensus_reached\": false\n")
	prompt.WriteString("}\n")
	prompt.WriteString("```\n\n")
	prompt.WriteString("\"confidence\" is between 0 and 1. Set \"consensus_reached\" true only when the responses and your own view broadly agree.\n")

	return prompt.String()
}
