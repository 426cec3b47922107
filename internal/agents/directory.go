// Package agents provides read access to the agent directory. Agent
// records are owned by an external system; the council engine only
// looks them up.
package agents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sagespace/council/pkg/models"
)

// ErrAgentNotFound marks a lookup for an agent id with no record.
var ErrAgentNotFound = errors.New("agent not found")

// Directory provides read-only lookups against the agents table.
type Directory struct {
	db *sql.DB
}

// NewDirectory creates a new directory instance
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// GetAgent retrieves a single agent by ID.
func (d *Directory) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	query := `
	SELECT id, name, role, expertise, harmony_score
	FROM agents
	WHERE id = $1
	`

	var agent models.Agent
	var expertise pq.StringArray
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&agent.ID, &agent.Name, &agent.Role, &expertise, &agent.HarmonyScore,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	agent.Expertise = expertise

	return &agent, nil
}

// GetAgents retrieves the agents with the given IDs, in the order the
// IDs were supplied. Every ID must resolve.
func (d *Directory) GetAgents(ctx context.Context, ids []string) ([]models.Agent, error) {
	agents := make([]models.Agent, 0, len(ids))
	for _, id := range ids {
		agent, err := d.GetAgent(ctx, id)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, nil
}

// ListAgents retrieves all agents ordered by harmony score.
func (d *Directory) ListAgents(ctx context.Context) ([]models.Agent, error) {
	query := `
	SELECT id, name, role, expertise, harmony_score
	FROM agents
	ORDER BY harmony_score DESC, name ASC
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var agent models.Agent
		var expertise pq.StringArray
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Role, &expertise, &agent.HarmonyScore); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agent.Expertise = expertise
		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	log.Debug().Int("count", len(agents)).Msg("Listed agents from directory")
	return agents, nil
}

// TopByHarmony returns the n highest-harmony agents.
func (d *Directory) TopByHarmony(ctx context.Context, n int) ([]models.Agent, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `
	SELECT id, name, role, expertise, harmony_score
	FROM agents
	ORDER BY harmony_score DESC, name ASC
	LIMIT $1
	`

	rows, err := d.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get top agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var agent models.Agent
		var expertise pq.StringArray
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Role, &expertise, &agent.HarmonyScore); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agent.Expertise = expertise
		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return agents, nil
}
