package council

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sagespace/council/internal/llm"
	"github.com/sagespace/council/pkg/models"
)

// Ledger is the stateful record of council runs. All writes are scoped
// by session id; implementations must tolerate concurrent sessions.
type Ledger interface {
	CreateSession(ctx context.Context, session *models.CouncilSession, participants []models.Agent) error
	MarkDeliberating(ctx context.Context, sessionID string) error
	SaveDeliberation(ctx context.Context, d *models.Deliberation) error
	SaveVote(ctx context.Context, v *models.Vote) error
	// CompleteSession writes the VoteResult and the terminal status
	// atomically from a reader's perspective.
	CompleteSession(ctx context.Context, sessionID string, status models.SessionStatus, result *models.VoteResult, completedAt time.Time) error
	GetSession(ctx context.Context, sessionID string) (*models.CouncilSessionDetail, error)
}

// Service orchestrates council sessions: deliberation fan-out, vote
// collection, consensus calculation, and the audit trail.
type Service struct {
	ledger   Ledger
	executor *executor
	policy   WeightPolicy
}

// Options configures the council service.
type Options struct {
	WeightPolicy  WeightPolicy // default WeightFlat
	MaxConcurrent int          // parallel agent calls, default 4
}

// NewService creates a council service. The LLM client is injected so
// callers and tests control the provider.
func NewService(client llm.Client, ledger Ledger, opts Options) *Service {
	policy := opts.WeightPolicy
	if policy == "" {
		policy = WeightFlat
	}

	return &Service{
		ledger:   ledger,
		executor: newExecutor(client, opts.MaxConcurrent),
		policy:   policy,
	}
}

// SessionParams describes one council run.
type SessionParams struct {
	Query              string
	QueryType          string
	Agents             []models.Agent
	ConsensusThreshold float64
	// WeightPolicy overrides the service default when non-empty.
	WeightPolicy WeightPolicy
}

func (s *Service) validate(p SessionParams) error {
	if p.Query == "" {
		return fmt.Errorf("%w: query must not be empty", ErrInvalidConfiguration)
	}
	if len(p.Agents) == 0 {
		return fmt.Errorf("%w: at least one agent is required", ErrInvalidConfiguration)
	}
	if p.ConsensusThreshold < 0 || p.ConsensusThreshold > 1 {
		return fmt.Errorf("%w: consensus threshold %v outside [0,1]", ErrInvalidConfiguration, p.ConsensusThreshold)
	}
	for _, a := range p.Agents {
		if a.ID == "" {
			return fmt.Errorf("%w: agent %q has no id", ErrInvalidConfiguration, a.Name)
		}
	}
	if p.WeightPolicy != "" {
		if _, err := ParseWeightPolicy(string(p.WeightPolicy)); err != nil {
			return err
		}
	}
	return nil
}

// CreateSession validates params and persists a new pending session
// with its participant roster. No external LLM calls are made.
func (s *Service) CreateSession(ctx context.Context, p SessionParams) (*models.CouncilSession, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}

	queryType := p.QueryType
	if queryType == "" {
		queryType = "general"
	}

	session := &models.CouncilSession{
		ID:                 uuid.NewString(),
		Query:              p.Query,
		QueryType:          queryType,
		Status:             models.StatusPending,
		ConsensusThreshold: p.ConsensusThreshold,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.ledger.CreateSession(ctx, session, p.Agents); err != nil {
		return nil, &PersistenceError{Op: "create session", Err: err}
	}

	log.Info().
		Str("session_id", session.ID).
		Str("query_type", session.QueryType).
		Int("agents", len(p.Agents)).
		Float64("threshold", session.ConsensusThreshold).
		Msg("council session created")

	return session, nil
}

// RunSession creates a session and drives it to a terminal state.
func (s *Service) RunSession(ctx context.Context, p SessionParams) (*models.CouncilSessionDetail, error) {
	session, err := s.CreateSession(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.ExecuteSession(ctx, session.ID, p.WeightPolicy)
}

// ExecuteSession drives an already-created session through
// deliberation, voting, and consensus. Re-executing a session that is
// already terminal returns its recorded state, which makes queued
// retries idempotent. An empty policy uses the service default.
func (s *Service) ExecuteSession(ctx context.Context, sessionID string, policy WeightPolicy) (*models.CouncilSessionDetail, error) {
	if policy == "" {
		policy = s.policy
	}

	detail, err := s.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if detail.Session.Status.Terminal() {
		return detail, nil
	}

	if err := s.ledger.MarkDeliberating(ctx, sessionID); err != nil {
		return nil, &PersistenceError{Op: "mark deliberating", Err: err}
	}

	session := detail.Session
	outcomes := s.executor.run(ctx, session.Query, session.QueryType, detail.Participants)

	votes := make([]models.Vote, 0, len(outcomes))
	var agentErrs []*AgentError
	now := time.Now().UTC()

	for _, oc := range outcomes {
		if oc.err != nil {
			agentErrs = append(agentErrs, &AgentError{
				AgentID:   oc.agent.ID,
				AgentName: oc.agent.Name,
				Err:       oc.err,
			})
			continue
		}

		// A vote is never persisted before its deliberation.
		deliberation := &models.Deliberation{
			SessionID:  sessionID,
			AgentID:    oc.agent.ID,
			Phase:      PhaseInitial,
			Content:    oc.output.Position,
			Reasoning:  oc.output.Reasoning,
			Confidence: oc.output.Confidence,
			References: oc.output.References,
			CreatedAt:  now,
		}
		if err := s.ledger.SaveDeliberation(ctx, deliberation); err != nil {
			return nil, &PersistenceError{Op: "save deliberation", Err: err}
		}

		vote := models.Vote{
			SessionID:  sessionID,
			AgentID:    oc.agent.ID,
			Choice:     models.VoteChoice(oc.output.Vote),
			Reasoning:  oc.output.Reasoning,
			Confidence: oc.output.Confidence,
			Conditions: oc.output.Conditions,
			Blocking:   oc.output.Blocking,
			Weight:     voteWeight(policy, oc.agent),
			CreatedAt:  now,
		}
		if err := s.ledger.SaveVote(ctx, &vote); err != nil {
			return nil, &PersistenceError{Op: "save vote", Err: err}
		}
		votes = append(votes, vote)
	}

	completedAt := time.Now().UTC()

	if len(votes) == 0 {
		result := models.VoteResult{
			SessionID:           sessionID,
			FinalRecommendation: recommendation(models.VoteResult{}, models.StatusFailed, session.ConsensusThreshold),
		}
		if err := s.ledger.CompleteSession(ctx, sessionID, models.StatusFailed, &result, completedAt); err != nil {
			return nil, &PersistenceError{Op: "complete session", Err: err}
		}

		log.Error().
			Str("session_id", sessionID).
			Int("failed_agents", len(agentErrs)).
			Msg("council session failed: no agent produced a vote")

		if len(agentErrs) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoAgentsSucceeded, joinAgentErrors(agentErrs))
		}
		return nil, ErrNoAgentsSucceeded
	}

	result := Tally(votes, session.ConsensusThreshold)
	status := statusFor(result)
	result.FinalRecommendation = recommendation(result, status, session.ConsensusThreshold)

	if err := s.ledger.CompleteSession(ctx, sessionID, status, &result, completedAt); err != nil {
		return nil, &PersistenceError{Op: "complete session", Err: err}
	}

	log.Info().
		Str("session_id", sessionID).
		Str("status", string(status)).
		Float64("weighted_approval", result.WeightedApproval).
		Int("votes", result.TotalVotes).
		Int("failed_agents", len(agentErrs)).
		Msg("council session completed")

	return s.ledger.GetSession(ctx, sessionID)
}

// GetSession reads back a session with its participants,
// deliberations, votes, and result.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.CouncilSessionDetail, error) {
	return s.ledger.GetSession(ctx, sessionID)
}
