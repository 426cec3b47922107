package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sagespace/council/internal/council"
	"github.com/sagespace/council/pkg/models"
)

// Memory is an in-memory ledger with the same upsert and ordering
// semantics as the Postgres one. It backs tests and database-free runs.
type Memory struct {
	mu sync.Mutex

	sessions      map[string]*models.CouncilSession
	participants  map[string][]models.Agent
	deliberations map[string]map[string]models.Deliberation // session -> agent|phase
	votes         map[string]map[string]models.Vote         // session -> agent
	results       map[string]*models.VoteResult

	collaborations map[string]*models.Collaboration
	messages       map[string][]models.CollaborationMessage

	// ops records write operations in call order, e.g.
	// "deliberation:agent-1" before "vote:agent-1".
	ops []string
}

var _ council.Ledger = (*Memory)(nil)

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		sessions:       make(map[string]*models.CouncilSession),
		participants:   make(map[string][]models.Agent),
		deliberations:  make(map[string]map[string]models.Deliberation),
		votes:          make(map[string]map[string]models.Vote),
		results:        make(map[string]*models.VoteResult),
		collaborations: make(map[string]*models.Collaboration),
		messages:       make(map[string][]models.CollaborationMessage),
	}
}

// Ops returns a copy of the recorded write sequence.
func (m *Memory) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.ops))
	copy(out, m.ops)
	return out
}

func (m *Memory) CreateSession(ctx context.Context, session *models.CouncilSession, participants []models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; ok {
		return fmt.Errorf("session %s already exists", session.ID)
	}

	copied := *session
	m.sessions[session.ID] = &copied
	m.participants[session.ID] = append([]models.Agent(nil), participants...)
	m.deliberations[session.ID] = make(map[string]models.Deliberation)
	m.votes[session.ID] = make(map[string]models.Vote)
	m.ops = append(m.ops, "create:"+session.ID)

	return nil
}

func (m *Memory) MarkDeliberating(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", council.ErrSessionNotFound, sessionID)
	}
	if session.Status == models.StatusPending {
		session.Status = models.StatusDeliberating
	}
	m.ops = append(m.ops, "deliberating:"+sessionID)

	return nil
}

func (m *Memory) SaveDeliberation(ctx context.Context, d *models.Deliberation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey, ok := m.deliberations[d.SessionID]
	if !ok {
		return fmt.Errorf("%w: %s", council.ErrSessionNotFound, d.SessionID)
	}

	key := d.AgentID + "|" + d.Phase
	if _, exists := byKey[key]; !exists {
		byKey[key] = *d
	}
	m.ops = append(m.ops, "deliberation:"+d.AgentID)

	return nil
}

func (m *Memory) SaveVote(ctx context.Context, v *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byAgent, ok := m.votes[v.SessionID]
	if !ok {
		return fmt.Errorf("%w: %s", council.ErrSessionNotFound, v.SessionID)
	}
	// Causal guard: a vote must follow the agent's deliberation.
	if _, has := m.deliberations[v.SessionID][v.AgentID+"|"+council.PhaseInitial]; !has {
		return fmt.Errorf("vote for agent %s precedes its deliberation", v.AgentID)
	}

	if _, exists := byAgent[v.AgentID]; !exists {
		byAgent[v.AgentID] = *v
	}
	m.ops = append(m.ops, "vote:"+v.AgentID)

	return nil
}

func (m *Memory) CompleteSession(ctx context.Context, sessionID string, status models.SessionStatus, result *models.VoteResult, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", council.ErrSessionNotFound, sessionID)
	}

	copied := *result
	m.results[sessionID] = &copied
	session.Status = status
	session.FinalRecommendation = result.FinalRecommendation
	t := completedAt
	session.CompletedAt = &t
	m.ops = append(m.ops, "complete:"+sessionID)

	return nil
}

func (m *Memory) GetSession(ctx context.Context, sessionID string) (*models.CouncilSessionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", council.ErrSessionNotFound, sessionID)
	}

	detail := &models.CouncilSessionDetail{
		Session:      *session,
		Participants: append([]models.Agent(nil), m.participants[sessionID]...),
	}

	for _, d := range m.deliberations[sessionID] {
		detail.Deliberations = append(detail.Deliberations, d)
	}
	sort.Slice(detail.Deliberations, func(i, j int) bool {
		return detail.Deliberations[i].AgentID < detail.Deliberations[j].AgentID
	})

	for _, v := range m.votes[sessionID] {
		detail.Votes = append(detail.Votes, v)
	}
	sort.Slice(detail.Votes, func(i, j int) bool {
		return detail.Votes[i].AgentID < detail.Votes[j].AgentID
	})

	if result, ok := m.results[sessionID]; ok {
		copied := *result
		detail.Result = &copied
	}

	return detail, nil
}

func (m *Memory) ListSessions(ctx context.Context, limit, offset int) ([]models.CouncilSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	all := make([]models.CouncilSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}

	return all, nil
}

func (m *Memory) SaveCollaboration(ctx context.Context, run *models.Collaboration, messages []models.CollaborationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *run
	m.collaborations[run.ID] = &copied
	m.messages[run.ID] = append([]models.CollaborationMessage(nil), messages...)
	m.ops = append(m.ops, "collaboration:"+run.ID)

	return nil
}

// Collaboration returns a stored collaboration run and its message log.
func (m *Memory) Collaboration(id string) (*models.Collaboration, []models.CollaborationMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.collaborations[id]
	if !ok {
		return nil, nil, false
	}
	copied := *run
	return &copied, append([]models.CollaborationMessage(nil), m.messages[id]...), true
}
