package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ExtractJSON pulls a JSON object out of a model response. It prefers
// fenced ```json blocks, then bare braces. Returns "" when no candidate
// object is present.
func ExtractJSON(response string) string {
	start := strings.Index(response, "```json")
	if start == -1 {
		start = strings.Index(response, "```")
	}
	if start == -1 {
		trimmed := strings.TrimSpace(response)
		if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
			return trimmed
		}
		// Fall back to the outermost brace pair anywhere in the text.
		open := strings.Index(response, "{")
		if open == -1 {
			return ""
		}
		return sliceToClosingBrace(response, open)
	}

	open := strings.Index(response[start:], "{")
	if open == -1 {
		return ""
	}
	open += start

	return sliceToClosingBrace(response, open)
}

// sliceToClosingBrace returns the text from open through the last
// closing brace. A truncated object (no closing brace) is returned
// through the end of the text, minus any trailing fence, so the repair
// step can complete it.
func sliceToClosingBrace(response string, open int) string {
	close := strings.LastIndex(response, "}")
	if close > open {
		return response[open : close+1]
	}
	rest := strings.TrimSpace(response[open:])
	return strings.TrimSpace(strings.TrimSuffix(rest, "```"))
}

// DecodeJSON extracts and unmarshals a JSON object from a model
// response into target, repairing malformed JSON with the jsonrepair
// library when a straight parse fails. The repaired flag reports
// whether repair was needed, for observability.
func DecodeJSON(response string, target interface{}) (repaired bool, err error) {
	raw := ExtractJSON(response)
	if raw == "" {
		return false, fmt.Errorf("no JSON object found in response")
	}

	if json.Unmarshal([]byte(raw), target) == nil {
		return false, nil
	}

	fixed, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return false, fmt.Errorf("JSON repair failed: %w", repairErr)
	}

	if err := json.Unmarshal([]byte(fixed), target); err != nil {
		return true, fmt.Errorf("failed to parse repaired JSON: %w", err)
	}

	return true, nil
}
