// Package ledger persists council sessions and their artifacts: the
// audit trail of deliberations, votes, results, and collaboration
// message logs.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sagespace/council/internal/council"
	"github.com/sagespace/council/pkg/models"
)

// Postgres is the relational session ledger.
//
// Deliberations and votes are append-only with unique constraints on
// (session_id, agent_id, phase) and (session_id, agent_id), so a
// retried write lands on ON CONFLICT DO NOTHING and stays idempotent.
type Postgres struct {
	db *sql.DB
}

var _ council.Ledger = (*Postgres)(nil)

// NewPostgres creates a new Postgres-backed ledger.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// CreateSession inserts a session and its participant roster in one
// transaction.
func (p *Postgres) CreateSession(ctx context.Context, session *models.CouncilSession, participants []models.Agent) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionQuery := `
	INSERT INTO council_sessions (id, query, query_type, status, consensus_threshold, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.ExecContext(ctx, sessionQuery,
		session.ID, session.Query, session.QueryType,
		string(session.Status), session.ConsensusThreshold, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	participantQuery := `
	INSERT INTO council_participants (session_id, agent_id, name, role, expertise, harmony_score, position)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, agent := range participants {
		_, err = tx.ExecContext(ctx, participantQuery,
			session.ID, agent.ID, agent.Name, agent.Role,
			pq.Array(agent.Expertise), agent.HarmonyScore, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant %s: %w", agent.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	return nil
}

// MarkDeliberating moves a pending session to deliberating.
func (p *Postgres) MarkDeliberating(ctx context.Context, sessionID string) error {
	query := `
	UPDATE council_sessions
	SET status = $1
	WHERE id = $2 AND status = $3
	`
	_, err := p.db.ExecContext(ctx, query,
		string(models.StatusDeliberating), sessionID, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark session deliberating: %w", err)
	}
	return nil
}

// SaveDeliberation stores one agent's reasoning output. Re-submitting
// the same (session, agent, phase) is a no-op.
func (p *Postgres) SaveDeliberation(ctx context.Context, d *models.Deliberation) error {
	query := `
	INSERT INTO deliberations (session_id, agent_id, phase, content, reasoning, confidence, citations, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (session_id, agent_id, phase) DO NOTHING
	`
	_, err := p.db.ExecContext(ctx, query,
		d.SessionID, d.AgentID, d.Phase, d.Content, d.Reasoning,
		d.Confidence, pq.Array(d.References), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deliberation: %w", err)
	}
	return nil
}

// SaveVote stores one agent's vote. Re-submitting the same
// (session, agent) is a no-op.
func (p *Postgres) SaveVote(ctx context.Context, v *models.Vote) error {
	query := `
	INSERT INTO votes (session_id, agent_id, vote, reasoning, confidence, conditions, blocking, weight, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (session_id, agent_id) DO NOTHING
	`
	_, err := p.db.ExecContext(ctx, query,
		v.SessionID, v.AgentID, string(v.Choice), v.Reasoning,
		v.Confidence, pq.Array(v.Conditions), v.Blocking, v.Weight, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// CompleteSession writes the VoteResult and the terminal session state
// in one transaction, result first, so a reader never sees a terminal
// status without its matching result.
func (p *Postgres) CompleteSession(ctx context.Context, sessionID string, status models.SessionStatus, result *models.VoteResult, completedAt time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	resultQuery := `
	INSERT INTO vote_results (session_id, total_votes, approvals, rejections, abstentions, conditionals, weighted_approval, consensus_reached, final_recommendation)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (session_id) DO UPDATE SET
		total_votes = EXCLUDED.total_votes,
		approvals = EXCLUDED.approvals,
		rejections = EXCLUDED.rejections,
		abstentions = EXCLUDED.abstentions,
		conditionals = EXCLUDED.conditionals,
		weighted_approval = EXCLUDED.weighted_approval,
		consensus_reached = EXCLUDED.consensus_reached,
		final_recommendation = EXCLUDED.final_recommendation
	`
	_, err = tx.ExecContext(ctx, resultQuery,
		sessionID, result.TotalVotes, result.Approvals, result.Rejections,
		result.Abstentions, result.Conditionals, result.WeightedApproval,
		result.ConsensusReached, result.FinalRecommendation,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert vote result: %w", err)
	}

	sessionQuery := `
	UPDATE council_sessions
	SET status = $1, final_recommendation = $2, completed_at = $3
	WHERE id = $4
	`
	_, err = tx.ExecContext(ctx, sessionQuery,
		string(status), result.FinalRecommendation, completedAt, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session completion: %w", err)
	}

	log.Debug().
		Str("session_id", sessionID).
		Str("status", string(status)).
		Msg("session completed in ledger")

	return nil
}

// GetSession reads back a session with all its artifacts.
func (p *Postgres) GetSession(ctx context.Context, sessionID string) (*models.CouncilSessionDetail, error) {
	sessionQuery := `
	SELECT id, query, query_type, status, consensus_threshold, COALESCE(final_recommendation, ''), created_at, completed_at
	FROM council_sessions
	WHERE id = $1
	`

	var detail models.CouncilSessionDetail
	var status string
	var completedAt sql.NullTime
	err := p.db.QueryRowContext(ctx, sessionQuery, sessionID).Scan(
		&detail.Session.ID, &detail.Session.Query, &detail.Session.QueryType,
		&status, &detail.Session.ConsensusThreshold,
		&detail.Session.FinalRecommendation, &detail.Session.CreatedAt, &completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", council.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	detail.Session.Status = models.SessionStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		detail.Session.CompletedAt = &t
	}

	participants, err := p.getParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail.Participants = participants

	deliberations, err := p.getDeliberations(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail.Deliberations = deliberations

	votes, err := p.getVotes(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail.Votes = votes

	result, err := p.getResult(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail.Result = result

	return &detail, nil
}

func (p *Postgres) getParticipants(ctx context.Context, sessionID string) ([]models.Agent, error) {
	query := `
	SELECT agent_id, name, role, expertise, harmony_score
	FROM council_participants
	WHERE session_id = $1
	ORDER BY position ASC
	`

	rows, err := p.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var agent models.Agent
		var expertise pq.StringArray
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Role, &expertise, &agent.HarmonyScore); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		agent.Expertise = expertise
		agents = append(agents, agent)
	}

	return agents, rows.Err()
}

func (p *Postgres) getDeliberations(ctx context.Context, sessionID string) ([]models.Deliberation, error) {
	query := `
	SELECT session_id, agent_id, phase, content, reasoning, confidence, citations, created_at
	FROM deliberations
	WHERE session_id = $1
	ORDER BY created_at ASC, agent_id ASC
	`

	rows, err := p.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliberations: %w", err)
	}
	defer rows.Close()

	var deliberations []models.Deliberation
	for rows.Next() {
		var d models.Deliberation
		var citations pq.StringArray
		if err := rows.Scan(&d.SessionID, &d.AgentID, &d.Phase, &d.Content,
			&d.Reasoning, &d.Confidence, &citations, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deliberation: %w", err)
		}
		d.References = citations
		deliberations = append(deliberations, d)
	}

	return deliberations, rows.Err()
}

func (p *Postgres) getVotes(ctx context.Context, sessionID string) ([]models.Vote, error) {
	query := `
	SELECT session_id, agent_id, vote, reasoning, confidence, conditions, blocking, weight, created_at
	FROM votes
	WHERE session_id = $1
	ORDER BY created_at ASC, agent_id ASC
	`

	rows, err := p.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var v models.Vote
		var choice string
		var conditions pq.StringArray
		if err := rows.Scan(&v.SessionID, &v.AgentID, &choice, &v.Reasoning,
			&v.Confidence, &conditions, &v.Blocking, &v.Weight, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		v.Choice = models.VoteChoice(choice)
		v.Conditions = conditions
		votes = append(votes, v)
	}

	return votes, rows.Err()
}

func (p *Postgres) getResult(ctx context.Context, sessionID string) (*models.VoteResult, error) {
	query := `
	SELECT session_id, total_votes, approvals, rejections, abstentions, conditionals, weighted_approval, consensus_reached, final_recommendation
	FROM vote_results
	WHERE session_id = $1
	`

	var r models.VoteResult
	err := p.db.QueryRowContext(ctx, query, sessionID).Scan(
		&r.SessionID, &r.TotalVotes, &r.Approvals, &r.Rejections,
		&r.Abstentions, &r.Conditionals, &r.WeightedApproval,
		&r.ConsensusReached, &r.FinalRecommendation,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vote result: %w", err)
	}

	return &r, nil
}

// ListSessions returns sessions newest-first with pagination.
func (p *Postgres) ListSessions(ctx context.Context, limit, offset int) ([]models.CouncilSession, error) {
	if limit <= 0 {
		limit = 20 // Default limit
	}
	if limit > 100 {
		limit = 100 // Max limit
	}

	query := `
	SELECT id, query, query_type, status, consensus_threshold, COALESCE(final_recommendation, ''), created_at, completed_at
	FROM council_sessions
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2
	`

	rows, err := p.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.CouncilSession
	for rows.Next() {
		var s models.CouncilSession
		var status string
		var completedAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.Query, &s.QueryType, &status,
			&s.ConsensusThreshold, &s.FinalRecommendation, &s.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.Status = models.SessionStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			s.CompletedAt = &t
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// SaveCollaboration stores a collaboration run and its ordered message
// log in one transaction.
func (p *Postgres) SaveCollaboration(ctx context.Context, run *models.Collaboration, messages []models.CollaborationMessage) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runQuery := `
	INSERT INTO collaborations (id, query, primary_agent_id, outcome, confidence, consensus_reached, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, runQuery,
		run.ID, run.Query, run.PrimaryAgentID, run.Outcome,
		run.Confidence, run.ConsensusReached, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert collaboration: %w", err)
	}

	messageQuery := `
	INSERT INTO collaboration_messages (id, collaboration_id, from_agent, to_agent, message_type, content, context, requires_response, position, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for i, m := range messages {
		var contextJSON []byte
		if m.Context != nil {
			contextJSON, err = json.Marshal(m.Context)
			if err != nil {
				return fmt.Errorf("failed to marshal message context: %w", err)
			}
		}

		var toAgent interface{}
		if m.ToAgent != "" {
			toAgent = m.ToAgent
		}

		_, err = tx.ExecContext(ctx, messageQuery,
			m.ID, run.ID, m.FromAgent, toAgent, string(m.Type),
			m.Content, contextJSON, m.RequiresResponse, i, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert collaboration message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collaboration: %w", err)
	}

	return nil
}
