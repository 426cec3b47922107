package cmd

import (
	"database/sql"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/sagespace/council/internal/agents"
	"github.com/sagespace/council/internal/collab"
	"github.com/sagespace/council/internal/config"
	"github.com/sagespace/council/internal/council"
	"github.com/sagespace/council/internal/database"
	"github.com/sagespace/council/internal/ledger"
	"github.com/sagespace/council/internal/llm"
	"github.com/sagespace/council/internal/retry"
	"github.com/sagespace/council/pkg/models"
)

// services is everything a command needs to talk to the engine.
type services struct {
	cfg       *config.Config
	db        *sql.DB
	client    llm.Client
	ledger    *ledger.Postgres
	directory *agents.Directory
	council   *council.Service
	collab    *collab.Service
}

func (s *services) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// buildServices loads config and wires the full stack: database,
// resilient LLM client, ledger, council, and collaboration services.
func buildServices(c *cli.Context) (*services, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	base, err := llm.NewLangchainClient(c.Context, llm.LangchainConfig{
		APIKey:      cfg.LLM.APIKey,
		ModelName:   cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	client := llm.NewResilientClient(base, llm.ResilientOptions{
		Retry:             retry.LLMConfig(),
		Timeout:           cfg.LLMTimeout(),
		RequestsPerSecond: cfg.Council.RequestsPerSecond,
	})

	store := ledger.NewPostgres(db)

	councilSvc := council.NewService(client, store, council.Options{
		WeightPolicy:  council.WeightPolicy(cfg.Council.WeightPolicy),
		MaxConcurrent: cfg.Council.MaxConcurrent,
	})

	collabSvc := collab.NewService(client, store, collab.Options{
		MaxConcurrent: cfg.Council.MaxConcurrent,
	})

	return &services{
		cfg:       cfg,
		db:        db,
		client:    client,
		ledger:    store,
		directory: agents.NewDirectory(db),
		council:   councilSvc,
		collab:    collabSvc,
	}, nil
}

// resolveAgents turns CLI agent ids into directory records, defaulting
// to the whole directory when none are given.
func resolveAgents(c *cli.Context, dir *agents.Directory, ids []string) ([]models.Agent, error) {
	if len(ids) > 0 {
		return dir.GetAgents(c.Context, ids)
	}
	return dir.ListAgents(c.Context)
}
