// Package collab implements auto-detected agent-to-agent collaboration:
// a linear detect, initiate, respond, synthesize exchange between a
// primary agent and selected collaborators. Unlike a council session
// there is no formal voting; the primary agent self-assesses the
// outcome.
package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sagespace/council/internal/llm"
	"github.com/sagespace/council/pkg/models"
)

// Store persists completed collaboration runs.
type Store interface {
	SaveCollaboration(ctx context.Context, run *models.Collaboration, messages []models.CollaborationMessage) error
}

// Service runs the collaboration state machine.
type Service struct {
	client      llm.Client
	store       Store
	maxParallel int
	fallbackN   int
}

// Options configures the collaboration service.
type Options struct {
	MaxConcurrent int // parallel collaborator calls, default 4
	// FallbackCollaborators is how many top-harmony agents step in when
	// the detector recommends nobody recognizable. Default 2.
	FallbackCollaborators int
}

// NewService creates a collaboration service. Store may be nil for
// callers that keep no record.
func NewService(client llm.Client, store Store, opts Options) *Service {
	maxParallel := opts.MaxConcurrent
	if maxParallel <= 0 {
		maxParallel = 4
	}
	fallbackN := opts.FallbackCollaborators
	if fallbackN <= 0 {
		fallbackN = 2
	}

	return &Service{
		client:      client,
		store:       store,
		maxParallel: maxParallel,
		fallbackN:   fallbackN,
	}
}

// Result is the outcome of one auto-collaboration run. When
// Collaborated is false the remaining fields are zero.
type Result struct {
	Collaborated     bool                          `json:"collaborated"`
	CollaborationID  string                        `json:"collaboration_id,omitempty"`
	Messages         []models.CollaborationMessage `json:"messages,omitempty"`
	Outcome          string                        `json:"outcome,omitempty"`
	Confidence       float64                       `json:"confidence,omitempty"`
	ConsensusReached bool                          `json:"consensus_reached,omitempty"`
}

// synthesis is the structured shape of the final synthesize call.
type synthesis struct {
	Outcome          string  `json:"outcome"`
	Confidence       float64 `json:"confidence"`
	ConsensusReached bool    `json:"consensus_reached"`
}

// Run executes detect, initiate, respond, synthesize for one query. A
// failed or unparseable detection means no collaboration. A failed
// initiate or synthesize call fails the whole run; there is no
// partial-collaboration success. Individual collaborator failures are
// logged and skipped.
func (s *Service) Run(ctx context.Context, query string, primary models.Agent, available []models.Agent) (*Result, error) {
	d := s.detect(ctx, query, primary, available)
	if !d.Needed {
		log.Debug().Str("primary", primary.Name).Msg("no collaboration needed")
		return &Result{Collaborated: false}, nil
	}

	collaborators := selectCollaborators(d, primary, available, s.fallbackN)
	if len(collaborators) == 0 {
		log.Debug().Str("primary", primary.Name).Msg("collaboration wanted but no other agents available")
		return &Result{Collaborated: false}, nil
	}

	collaborationID := uuid.NewString()
	log.Info().
		Str("collaboration_id", collaborationID).
		Str("primary", primary.Name).
		Int("collaborators", len(collaborators)).
		Strs("thresholds", d.Thresholds).
		Msg("collaboration triggered")

	broadcast, err := s.initiate(ctx, collaborationID, query, primary)
	if err != nil {
		return nil, fmt.Errorf("collaboration initiate failed: %w", err)
	}

	responses := s.respond(ctx, collaborationID, query, broadcast, primary, collaborators)

	outcome, decision, err := s.synthesize(ctx, collaborationID, query, primary, responses)
	if err != nil {
		return nil, fmt.Errorf("collaboration synthesize failed: %w", err)
	}

	messages := make([]models.CollaborationMessage, 0, len(responses)+2)
	messages = append(messages, broadcast)
	messages = append(messages, responses...)
	messages = append(messages, decision)

	result := &Result{
		Collaborated:     true,
		CollaborationID:  collaborationID,
		Messages:         messages,
		Outcome:          outcome.Outcome,
		Confidence:       outcome.Confidence,
		ConsensusReached: outcome.ConsensusReached,
	}

	if s.store != nil {
		run := &models.Collaboration{
			ID:               collaborationID,
			Query:            query,
			PrimaryAgentID:   primary.ID,
			Outcome:          result.Outcome,
			Confidence:       result.Confidence,
			ConsensusReached: result.ConsensusReached,
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.store.SaveCollaboration(ctx, run, messages); err != nil {
			return nil, fmt.Errorf("failed to persist collaboration %s: %w", collaborationID, err)
		}
	}

	return result, nil
}

func (s *Service) initiate(ctx context.Context, collaborationID, query string, primary models.Agent) (models.CollaborationMessage, error) {
	content, err := s.client.Generate(ctx, llm.Request{
		System: agentSystemPrompt(primary),
		Prompt: initiatePrompt(query),
	})
	if err != nil {
		return models.CollaborationMessage{}, err
	}

	return models.CollaborationMessage{
		ID:               uuid.NewString(),
		CollaborationID:  collaborationID,
		FromAgent:        primary.ID,
		Type:             models.MessageBroadcast,
		Content:          content,
		RequiresResponse: true,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// respond fans out one call per collaborator and fans in after all of
// them settle. A failing collaborator is skipped; response order
// follows the collaborator order.
func (s *Service) respond(ctx context.Context, collaborationID, query string, broadcast models.CollaborationMessage, primary models.Agent, collaborators []models.Agent) []models.CollaborationMessage {
	settled := make([]*models.CollaborationMessage, len(collaborators))

	g := new(errgroup.Group)
	g.SetLimit(s.maxParallel)

	for i, agent := range collaborators {
		g.Go(func() error {
			content, err := s.client.Generate(ctx, llm.Request{
				System: agentSystemPrompt(agent),
				Prompt: respondPrompt(query, broadcast.Content, primary),
			})
			if err != nil {
				log.Warn().
					Err(err).
					Str("collaboration_id", collaborationID).
					Str("agent", agent.Name).
					Msg("collaborator response failed, skipping")
				return nil
			}

			settled[i] = &models.CollaborationMessage{
				ID:              uuid.NewString(),
				CollaborationID: collaborationID,
				FromAgent:       agent.ID,
				ToAgent:         primary.ID,
				Type:            models.MessageResponse,
				Content:         content,
				CreatedAt:       time.Now().UTC(),
			}
			return nil
		})
	}
	_ = g.Wait()

	responses := make([]models.CollaborationMessage, 0, len(collaborators))
	for _, r := range settled {
		if r != nil {
			responses = append(responses, *r)
		}
	}
	return responses
}

func (s *Service) synthesize(ctx context.Context, collaborationID, query string, primary models.Agent, responses []models.CollaborationMessage) (synthesis, models.CollaborationMessage, error) {
	raw, err := s.client.Generate(ctx, llm.Request{
		System: agentSystemPrompt(primary),
		Prompt: synthesizePrompt(query, responses),
	})
	if err != nil {
		return synthesis{}, models.CollaborationMessage{}, err
	}

	var out synthesis
	if _, decodeErr := llm.DecodeJSON(raw, &out); decodeErr != nil {
		// The synthesize call succeeded but the shape did not: keep the
		// raw text as the outcome rather than failing the run.
		log.Info().
			Err(decodeErr).
			Str("collaboration_id", collaborationID).
			Msg("synthesis output unparseable, using raw text")
		out = synthesis{Outcome: raw, Confidence: 0.5}
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}

	decision := models.CollaborationMessage{
		ID:              uuid.NewString(),
		CollaborationID: collaborationID,
		FromAgent:       primary.ID,
		Type:            models.MessageDecision,
		Content:         out.Outcome,
		CreatedAt:       time.Now().UTC(),
	}
	return out, decision, nil
}
