package llm

import "testing"

func TestExtractJSON_FencedBlock(t *testing.T) {
	response := "Here is my vote:\n```json\n{\"vote\": \"approve\"}\n```\nDone."

	got := ExtractJSON(response)
	want := `{"vote": "approve"}`
	if got != want {
		t.Errorf("ExtractJSON = %q, want %q", got, want)
	}
}

func TestExtractJSON_BareObject(t *testing.T) {
	response := `{"vote": "reject", "confidence": 0.9}`

	if got := ExtractJSON(response); got != response {
		t.Errorf("ExtractJSON = %q, want %q", got, response)
	}
}

func TestExtractJSON_EmbeddedObject(t *testing.T) {
	response := `The council decides {"vote": "abstain"} as noted.`

	got := ExtractJSON(response)
	want := `{"vote": "abstain"}`
	if got != want {
		t.Errorf("ExtractJSON = %q, want %q", got, want)
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	if got := ExtractJSON("no structured output here"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestDecodeJSON_Valid(t *testing.T) {
	var out struct {
		Vote string `json:"vote"`
	}

	repaired, err := DecodeJSON(`{"vote": "approve"}`, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repaired {
		t.Error("expected no repair for valid JSON")
	}
	if out.Vote != "approve" {
		t.Errorf("Vote = %q, want approve", out.Vote)
	}
}

func TestDecodeJSON_RepairsTrailingComma(t *testing.T) {
	var out struct {
		Vote       string  `json:"vote"`
		Confidence float64 `json:"confidence"`
	}

	repaired, err := DecodeJSON(`{"vote": "reject", "confidence": 0.8,}`, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repaired {
		t.Error("expected repair to be reported")
	}
	if out.Vote != "reject" || out.Confidence != 0.8 {
		t.Errorf("unexpected decode result: %+v", out)
	}
}

func TestDecodeJSON_RepairsTruncatedObject(t *testing.T) {
	var out struct {
		Vote string `json:"vote"`
	}

	repaired, err := DecodeJSON("```json\n{\"vote\": \"approve\"\n```", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repaired {
		t.Error("expected repair to be reported")
	}
	if out.Vote != "approve" {
		t.Errorf("Vote = %q, want approve", out.Vote)
	}
}

func TestDecodeJSON_NoJSON(t *testing.T) {
	var out map[string]interface{}
	if _, err := DecodeJSON("plain prose, no braces", &out); err == nil {
		t.Error("expected error for response without JSON")
	}
}
