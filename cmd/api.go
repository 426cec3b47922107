package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/sagespace/council/internal/api"
	"github.com/sagespace/council/internal/database"
	"github.com/sagespace/council/internal/jobqueue"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the council API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "no-queue",
				Usage: "Disable the async session queue (sync endpoints only)",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	svcs, err := buildServices(c)
	if err != nil {
		return err
	}
	defer svcs.Close()

	port := svcs.cfg.Server.Port
	if c.Int("port") != 0 {
		port = c.Int("port")
	}

	var queue *jobqueue.Queue
	if !c.Bool("no-queue") {
		databaseURL, err := database.ResolveURL(svcs.cfg.Database.URL)
		if err != nil {
			return err
		}
		queue, err = jobqueue.NewQueue(databaseURL, svcs.council)
		if err != nil {
			return fmt.Errorf("failed to create job queue: %w", err)
		}
		if err := queue.Start(c.Context); err != nil {
			return fmt.Errorf("failed to start job queue: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := queue.Stop(ctx); err != nil {
				log.Warn().Err(err).Msg("job queue did not stop cleanly")
			}
		}()
	}

	deps := api.Deps{
		Council:          svcs.council,
		Sessions:         svcs.ledger,
		Directory:        svcs.directory,
		Collab:           svcs.collab,
		DefaultThreshold: svcs.cfg.Council.DefaultThreshold,
	}
	if queue != nil {
		deps.Queue = queue
	}

	fmt.Printf("Starting council API server on port %d...\n", port)
	return api.NewServer(port, deps).Start()
}
