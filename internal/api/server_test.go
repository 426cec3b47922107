package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagespace/council/internal/agents"
	"github.com/sagespace/council/internal/collab"
	"github.com/sagespace/council/internal/council"
	"github.com/sagespace/council/pkg/models"
)

type fakeCouncil struct {
	runDetail *models.CouncilSessionDetail
	runErr    error
	created   *models.CouncilSession
	createErr error
	got       *models.CouncilSessionDetail
	getErr    error

	lastParams council.SessionParams
}

func (f *fakeCouncil) CreateSession(ctx context.Context, p council.SessionParams) (*models.CouncilSession, error) {
	f.lastParams = p
	return f.created, f.createErr
}

func (f *fakeCouncil) RunSession(ctx context.Context, p council.SessionParams) (*models.CouncilSessionDetail, error) {
	f.lastParams = p
	return f.runDetail, f.runErr
}

func (f *fakeCouncil) GetSession(ctx context.Context, sessionID string) (*models.CouncilSessionDetail, error) {
	return f.got, f.getErr
}

type fakeLister struct {
	sessions []models.CouncilSession
}

func (f *fakeLister) ListSessions(ctx context.Context, limit, offset int) ([]models.CouncilSession, error) {
	return f.sessions, nil
}

type fakeDirectory struct {
	agents map[string]models.Agent
}

func (f *fakeDirectory) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", agents.ErrAgentNotFound, id)
	}
	return &a, nil
}

func (f *fakeDirectory) GetAgents(ctx context.Context, ids []string) ([]models.Agent, error) {
	out := make([]models.Agent, 0, len(ids))
	for _, id := range ids {
		a, err := f.GetAgent(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeDirectory) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var out []models.Agent
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}

type fakeCollab struct {
	result *collab.Result
	err    error
}

func (f *fakeCollab) Run(ctx context.Context, query string, primary models.Agent, available []models.Agent) (*collab.Result, error) {
	return f.result, f.err
}

type fakeQueue struct {
	enqueued []string
	err      error
}

func (f *fakeQueue) EnqueueSession(ctx context.Context, sessionID string, policy council.WeightPolicy) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, sessionID)
	return nil
}

func testServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Directory == nil {
		deps.Directory = &fakeDirectory{agents: map[string]models.Agent{
			"a1": {ID: "a1", Name: "Sage Alpha"},
			"a2": {ID: "a2", Name: "Sage Beta"},
		}}
	}
	if deps.DefaultThreshold == 0 {
		deps.DefaultThreshold = 0.66
	}
	return NewServer(0, deps)
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestHealth(t *testing.T) {
	s := testServer(t, Deps{Council: &fakeCouncil{}, Sessions: &fakeLister{}, Collab: &fakeCollab{}})

	rec := doRequest(s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCreateSession_Sync(t *testing.T) {
	detail := &models.CouncilSessionDetail{
		Session: models.CouncilSession{
			ID:     "sess-1",
			Status: models.StatusConsensusReached,
		},
	}
	fc := &fakeCouncil{runDetail: detail}
	s := testServer(t, Deps{Council: fc, Sessions: &fakeLister{}, Collab: &fakeCollab{}})

	rec := doRequest(s, http.MethodPost, "/api/v1/council/sessions",
		`{"query": "Adopt?", "agent_ids": ["a1", "a2"], "consensus_threshold": 0.75}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got models.CouncilSessionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "sess-1", got.Session.ID)

	assert.Equal(t, 0.75, fc.lastParams.ConsensusThreshold)
	assert.Len(t, fc.lastParams.Agents, 2)
}

func TestCreateSession_DefaultThresholdAndRoster(t *testing.T) {
	fc := &fakeCouncil{runDetail: &models.CouncilSessionDetail{}}
	s := testServer(t, Deps{Council: fc, Sessions: &fakeLister{}, Collab: &fakeCollab{}})

	rec := doRequest(s, http.MethodPost, "/api/v1/council/sessions", `{"query": "Adopt?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.66, fc.lastParams.ConsensusThreshold)
	assert.Len(t, fc.lastParams.Agents, 2, "empty agent_ids convenes the whole directory")
}

func TestCreateSession_UnknownAgent(t *testing.T) {
	s := testServer(t, Deps{Council: &fakeCouncil{}, Sessions: &fakeLister{}, Collab: &fakeCollab{}})

	rec := doRequest(s, http.MethodPost, "/api/v1/council/sessions",
		`{"query": "Adopt?", "agent_ids": ["missing"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid configuration", fmt.Errorf("%w: bad threshold", council.ErrInvalidConfiguration), http.StatusBadRequest},
		{"no agents succeeded", fmt.Errorf("%w: all providers down", council.ErrNoAgentsSucceeded), http.StatusBadGateway},
		{"opaque failure", errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, Deps{Council: &fakeCouncil{runErr: tt.err}, Sessions: &fakeLister{}, Collab: &fakeCollab{}})

			rec := doRequest(s, http.MethodPost, "/api/v1/council/sessions",
				`{"query": "Adopt?", "agent_ids": ["a1"]}`)

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "pq:", "internals must not leak")
			}
		})
	}
}

func TestCreateSessionAsync(t *testing.T) {
	fc := &fakeCouncil{created: &models.CouncilSession{ID: "sess-9", Status: models.StatusPending}}
	q := &fakeQueue{}
	s := testServer(t, Deps{Council: fc, Sessions: &fakeLister{}, Collab: &fakeCollab{}, Queue: q})

	rec := doRequest(s, http.MethodPost, "/api/v1/council/sessions/async",
		`{"query": "Adopt?", "agent_ids": ["a1"]}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"sess-9"}, q.enqueued)
	assert.Contains(t, rec.Body.String(), "pending")
}

func TestCreateSessionAsync_Disabled(t *testing.T) {
	s := testServer(t, Deps{Council: &fakeCouncil{}, Sessions: &fakeLister{}, Collab: &fakeCollab{}})

	rec := doRequest(s, http.MethodPost, "/api/v1/council/sessions/async", `{"query": "q"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	fc := &fakeCouncil{getErr: fmt.Errorf("%w: nope", council.ErrSessionNotFound)}
	s := testServer(t, Deps{Council: fc, Sessions: &fakeLister{}, Collab: &fakeCollab{}})

	rec := doRequest(s, http.MethodGet, "/api/v1/council/sessions/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSessions(t *testing.T) {
	now := time.Now().UTC()
	lister := &fakeLister{sessions: []models.CouncilSession{
		{ID: "s2", CreatedAt: now},
		{ID: "s1", CreatedAt: now.Add(-time.Hour)},
	}}
	s := testServer(t, Deps{Council: &fakeCouncil{}, Sessions: lister, Collab: &fakeCollab{}})

	rec := doRequest(s, http.MethodGet, "/api/v1/council/sessions?limit=2", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Sessions []models.CouncilSession `json:"sessions"`
		Count    int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "s2", got.Sessions[0].ID)
}

func TestRunCollaboration(t *testing.T) {
	fcol := &fakeCollab{result: &collab.Result{
		Collaborated:    true,
		CollaborationID: "collab-1",
		Outcome:         "proceed",
		Confidence:      0.8,
	}}
	s := testServer(t, Deps{Council: &fakeCouncil{}, Sessions: &fakeLister{}, Collab: fcol})

	rec := doRequest(s, http.MethodPost, "/api/v1/collaborations",
		`{"query": "Should we?", "primary_agent_id": "a1"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got collab.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Collaborated)
	assert.Equal(t, "collab-1", got.CollaborationID)
}

func TestRunCollaboration_MissingFields(t *testing.T) {
	s := testServer(t, Deps{Council: &fakeCouncil{}, Sessions: &fakeLister{}, Collab: &fakeCollab{}})

	rec := doRequest(s, http.MethodPost, "/api/v1/collaborations", `{"query": "only a query"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunCollaboration_UnknownPrimary(t *testing.T) {
	s := testServer(t, Deps{Council: &fakeCouncil{}, Sessions: &fakeLister{}, Collab: &fakeCollab{}})

	rec := doRequest(s, http.MethodPost, "/api/v1/collaborations",
		`{"query": "q", "primary_agent_id": "missing"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
