package council_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagespace/council/internal/council"
	"github.com/sagespace/council/internal/ledger"
	"github.com/sagespace/council/internal/llm"
	"github.com/sagespace/council/pkg/models"
)

// fakeClient answers each call by matching the agent name framed into
// the system prompt.
type fakeClient struct {
	responses map[string]string // agent name -> raw response
	errs      map[string]error  // agent name -> call error
}

func (f *fakeClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	for name, err := range f.errs {
		if strings.Contains(req.System, name) {
			return "", err
		}
	}
	for name, response := range f.responses {
		if strings.Contains(req.System, name) {
			return response, nil
		}
	}
	return "", fmt.Errorf("no scripted response for prompt %q", req.System)
}

func approveJSON(position string, confidence float64) string {
	return fmt.Sprintf(`{"position": %q, "reasoning": %q, "confidence": %v, "vote": "approve"}`,
		position, position, confidence)
}

func rejectJSON(position string) string {
	return fmt.Sprintf(`{"position": %q, "reasoning": %q, "confidence": 0.9, "vote": "reject"}`,
		position, position)
}

func testAgents() []models.Agent {
	return []models.Agent{
		{ID: "agent-1", Name: "Sage Alpha", Role: "architect", HarmonyScore: 80},
		{ID: "agent-2", Name: "Sage Beta", Role: "security", HarmonyScore: 60},
		{ID: "agent-3", Name: "Sage Gamma", Role: "operations", HarmonyScore: 40},
	}
}

func TestRunSession_ConsensusReached(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"Sage Alpha": approveJSON("sound design", 0.9),
		"Sage Beta":  approveJSON("no security concerns", 0.8),
		"Sage Gamma": rejectJSON("operational risk"),
	}}
	store := ledger.NewMemory()
	svc := council.NewService(client, store, council.Options{})

	detail, err := svc.RunSession(context.Background(), council.SessionParams{
		Query:              "Adopt the new deployment pipeline?",
		Agents:             testAgents(),
		ConsensusThreshold: 0.66,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusConsensusReached, detail.Session.Status)
	require.NotNil(t, detail.Result)
	assert.True(t, detail.Result.ConsensusReached)
	assert.Equal(t, 3, detail.Result.TotalVotes)
	assert.Equal(t, 2, detail.Result.Approvals)
	assert.InDelta(t, 2.0/3.0, detail.Result.WeightedApproval, 1e-9)
	assert.NotEmpty(t, detail.Session.FinalRecommendation)
	assert.NotNil(t, detail.Session.CompletedAt)
	assert.Len(t, detail.Deliberations, 3)
	assert.Len(t, detail.Votes, 3)
}

func TestRunSession_NoConsensus(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"Sage Alpha": approveJSON("fine", 0.9),
		"Sage Beta":  rejectJSON("too risky"),
		"Sage Gamma": rejectJSON("not now"),
	}}
	svc := council.NewService(client, ledger.NewMemory(), council.Options{})

	detail, err := svc.RunSession(context.Background(), council.SessionParams{
		Query:              "Adopt the new deployment pipeline?",
		Agents:             testAgents(),
		ConsensusThreshold: 0.66,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusNoConsensus, detail.Session.Status)
	assert.False(t, detail.Result.ConsensusReached)
	assert.Contains(t, detail.Session.FinalRecommendation, "insufficient consensus")
}

func TestRunSession_PartialAgentFailure(t *testing.T) {
	client := &fakeClient{
		responses: map[string]string{
			"Sage Alpha": approveJSON("fine", 0.9),
			"Sage Beta":  approveJSON("fine", 0.8),
		},
		errs: map[string]error{
			"Sage Gamma": errors.New("provider timeout"),
		},
	}
	svc := council.NewService(client, ledger.NewMemory(), council.Options{})

	detail, err := svc.RunSession(context.Background(), council.SessionParams{
		Query:              "Roll out the cache layer?",
		Agents:             testAgents(),
		ConsensusThreshold: 0.66,
	})
	require.NoError(t, err)

	// The failed agent is excluded from the tally entirely, not
	// recorded as a vote.
	assert.Equal(t, 2, detail.Result.TotalVotes)
	assert.Len(t, detail.Votes, 2)
	assert.Equal(t, 1.0, detail.Result.WeightedApproval)
	assert.Equal(t, models.StatusConsensusReached, detail.Session.Status)
}

func TestRunSession_AllAgentsFail(t *testing.T) {
	client := &fakeClient{errs: map[string]error{
		"Sage Alpha": errors.New("provider down"),
		"Sage Beta":  errors.New("provider down"),
		"Sage Gamma": errors.New("provider down"),
	}}
	store := ledger.NewMemory()
	svc := council.NewService(client, store, council.Options{})

	session, err := svc.CreateSession(context.Background(), council.SessionParams{
		Query:              "Anything?",
		Agents:             testAgents(),
		ConsensusThreshold: 0.5,
	})
	require.NoError(t, err)

	_, err = svc.ExecuteSession(context.Background(), session.ID, "")
	require.ErrorIs(t, err, council.ErrNoAgentsSucceeded)

	// The session still lands in a terminal state for auditability.
	detail, getErr := store.GetSession(context.Background(), session.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusFailed, detail.Session.Status)
	require.NotNil(t, detail.Result)
	assert.Equal(t, 0, detail.Result.TotalVotes)
}

func TestRunSession_UnparseableOutputAbstains(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"Sage Alpha": approveJSON("fine", 0.9),
		"Sage Beta":  "Honestly I just think we should go for it!",
		"Sage Gamma": approveJSON("fine", 0.8),
	}}
	svc := council.NewService(client, ledger.NewMemory(), council.Options{})

	detail, err := svc.RunSession(context.Background(), council.SessionParams{
		Query:              "Enable the feature flag?",
		Agents:             testAgents(),
		ConsensusThreshold: 0.66,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, detail.Result.Abstentions)
	assert.InDelta(t, 2.0/3.0, detail.Result.WeightedApproval, 1e-9)

	var abstained *models.Vote
	for i := range detail.Votes {
		if detail.Votes[i].AgentID == "agent-2" {
			abstained = &detail.Votes[i]
		}
	}
	require.NotNil(t, abstained)
	assert.Equal(t, models.VoteAbstain, abstained.Choice)
	assert.Contains(t, abstained.Reasoning, "go for it")
}

func TestRunSession_HarmonyWeighting(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"Sage Alpha": approveJSON("fine", 0.9), // harmony 80 -> weight 0.8
		"Sage Beta":  rejectJSON("no"),         // harmony 60 -> weight 0.6
		"Sage Gamma": rejectJSON("no"),         // harmony 40 -> weight 0.4
	}}
	svc := council.NewService(client, ledger.NewMemory(), council.Options{
		WeightPolicy: council.WeightHarmony,
	})

	detail, err := svc.RunSession(context.Background(), council.SessionParams{
		Query:              "Adopt?",
		Agents:             testAgents(),
		ConsensusThreshold: 0.5,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.8/1.8, detail.Result.WeightedApproval, 1e-9)
	assert.Equal(t, models.StatusNoConsensus, detail.Session.Status)
}

func TestCreateSession_Validation(t *testing.T) {
	svc := council.NewService(&fakeClient{}, ledger.NewMemory(), council.Options{})
	ctx := context.Background()

	tests := []struct {
		name   string
		params council.SessionParams
	}{
		{"empty query", council.SessionParams{Agents: testAgents(), ConsensusThreshold: 0.5}},
		{"no agents", council.SessionParams{Query: "q", ConsensusThreshold: 0.5}},
		{"threshold above one", council.SessionParams{Query: "q", Agents: testAgents(), ConsensusThreshold: 1.5}},
		{"negative threshold", council.SessionParams{Query: "q", Agents: testAgents(), ConsensusThreshold: -0.1}},
		{"agent without id", council.SessionParams{Query: "q", Agents: []models.Agent{{Name: "x"}}, ConsensusThreshold: 0.5}},
		{"unknown policy", council.SessionParams{Query: "q", Agents: testAgents(), ConsensusThreshold: 0.5, WeightPolicy: "quadratic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSession(ctx, tt.params)
			assert.ErrorIs(t, err, council.ErrInvalidConfiguration)
		})
	}
}

func TestCreateSession_InvalidParamsCreateNothing(t *testing.T) {
	store := ledger.NewMemory()
	svc := council.NewService(&fakeClient{}, store, council.Options{})

	_, err := svc.CreateSession(context.Background(), council.SessionParams{
		Query: "", Agents: testAgents(), ConsensusThreshold: 0.5,
	})
	require.ErrorIs(t, err, council.ErrInvalidConfiguration)
	assert.Empty(t, store.Ops(), "validation failure must not touch the ledger")
}

func TestExecuteSession_VoteNeverPrecedesDeliberation(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"Sage Alpha": approveJSON("fine", 0.9),
		"Sage Beta":  approveJSON("fine", 0.8),
		"Sage Gamma": rejectJSON("no"),
	}}
	store := ledger.NewMemory()
	svc := council.NewService(client, store, council.Options{})

	_, err := svc.RunSession(context.Background(), council.SessionParams{
		Query:              "q",
		Agents:             testAgents(),
		ConsensusThreshold: 0.5,
	})
	require.NoError(t, err)

	seen := map[string]bool{}
	votes := 0
	for _, op := range store.Ops() {
		if agentID, ok := strings.CutPrefix(op, "deliberation:"); ok {
			seen[agentID] = true
		}
		if agentID, ok := strings.CutPrefix(op, "vote:"); ok {
			assert.True(t, seen[agentID], "vote for %s persisted before its deliberation", agentID)
			votes++
		}
		if strings.HasPrefix(op, "complete:") {
			assert.Equal(t, 3, votes, "result written before all contributing votes")
		}
	}
}

func TestExecuteSession_TerminalSessionIsIdempotent(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"Sage Alpha": approveJSON("fine", 0.9),
		"Sage Beta":  approveJSON("fine", 0.8),
		"Sage Gamma": approveJSON("fine", 0.7),
	}}
	store := ledger.NewMemory()
	svc := council.NewService(client, store, council.Options{})

	first, err := svc.RunSession(context.Background(), council.SessionParams{
		Query:              "q",
		Agents:             testAgents(),
		ConsensusThreshold: 0.5,
	})
	require.NoError(t, err)
	opsAfterFirst := len(store.Ops())

	// A queued retry of a completed session replays nothing.
	second, err := svc.ExecuteSession(context.Background(), first.Session.ID, "")
	require.NoError(t, err)

	assert.Equal(t, first.Session.Status, second.Session.Status)
	assert.Equal(t, first.Result.WeightedApproval, second.Result.WeightedApproval)
	assert.Equal(t, opsAfterFirst, len(store.Ops()))
}

func TestExecuteSession_UnknownSession(t *testing.T) {
	svc := council.NewService(&fakeClient{}, ledger.NewMemory(), council.Options{})

	_, err := svc.ExecuteSession(context.Background(), "missing", "")
	assert.ErrorIs(t, err, council.ErrSessionNotFound)
}

func TestCreateSession_DefaultsQueryType(t *testing.T) {
	store := ledger.NewMemory()
	svc := council.NewService(&fakeClient{}, store, council.Options{})

	session, err := svc.CreateSession(context.Background(), council.SessionParams{
		Query:              "q",
		Agents:             testAgents(),
		ConsensusThreshold: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "general", session.QueryType)
	assert.Equal(t, models.StatusPending, session.Status)
}
