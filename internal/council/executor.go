package council

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sagespace/council/internal/llm"
	"github.com/sagespace/council/pkg/models"
)

// PhaseInitial is the deliberation phase every session runs.
const PhaseInitial = "initial"

// executor drives each participating agent through its reasoning call.
type executor struct {
	client      llm.Client
	maxParallel int
}

func newExecutor(client llm.Client, maxParallel int) *executor {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &executor{client: client, maxParallel: maxParallel}
}

// outcome is the settled result of one agent's reasoning call.
type outcome struct {
	agent  models.Agent
	output agentOutput
	parsed bool
	err    error
}

// run fans out one reasoning call per agent and fans in after every
// call settles. Errors are isolated per agent: a failing call never
// aborts the batch, and results carry no ordering guarantee beyond
// the slice index matching the input agent.
func (e *executor) run(ctx context.Context, query, queryType string, agents []models.Agent) []outcome {
	outcomes := make([]outcome, len(agents))
	prompt := deliberationPrompt(query, queryType)

	g := new(errgroup.Group)
	g.SetLimit(e.maxParallel)

	for i, agent := range agents {
		g.Go(func() error {
			response, err := e.client.Generate(ctx, llm.Request{
				System: deliberationSystemPrompt(agent),
				Prompt: prompt,
			})
			if err != nil {
				log.Warn().
					Err(err).
					Str("agent_id", agent.ID).
					Str("agent", agent.Name).
					Msg("agent reasoning call failed")
				outcomes[i] = outcome{agent: agent, err: err}
				return nil
			}

			output, parsed := parseAgentOutput(response)
			if !parsed {
				log.Info().
					Str("agent_id", agent.ID).
					Str("agent", agent.Name).
					Msg("agent output unparseable, recorded as abstain")
			}

			outcomes[i] = outcome{agent: agent, output: output, parsed: parsed}
			return nil
		})
	}

	// Goroutines never return errors; Wait is purely the fan-in point.
	_ = g.Wait()

	return outcomes
}
