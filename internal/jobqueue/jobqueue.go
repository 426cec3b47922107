// Package jobqueue runs council sessions asynchronously on a
// River-backed Postgres job queue. The API enqueues a session id; a
// worker drives it to a terminal state. Session execution is idempotent
// for terminal sessions, so River's retries are safe.
package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/sagespace/council/internal/council"
)

// CouncilSessionArgs identifies one queued session execution.
type CouncilSessionArgs struct {
	SessionID    string `json:"session_id"`
	WeightPolicy string `json:"weight_policy,omitempty"`
}

// Kind returns the job kind for River.
func (CouncilSessionArgs) Kind() string {
	return "council_session"
}

// CouncilSessionWorker executes queued council sessions.
type CouncilSessionWorker struct {
	river.WorkerDefaults[CouncilSessionArgs]
	service *council.Service
}

// Work drives one session to a terminal state.
func (w *CouncilSessionWorker) Work(ctx context.Context, job *river.Job[CouncilSessionArgs]) error {
	args := job.Args

	log.Info().
		Str("session_id", args.SessionID).
		Int("attempt", job.Attempt).
		Msg("executing queued council session")

	_, err := w.service.ExecuteSession(ctx, args.SessionID, council.WeightPolicy(args.WeightPolicy))
	if err != nil {
		// A vanished session or a council where every agent failed will
		// not improve on retry; the session ledger already holds the
		// terminal state.
		if errors.Is(err, council.ErrSessionNotFound) || errors.Is(err, council.ErrNoAgentsSucceeded) {
			log.Error().
				Err(err).
				Str("session_id", args.SessionID).
				Msg("queued council session cannot succeed, cancelling")
			return river.JobCancel(err)
		}
		return fmt.Errorf("failed to execute session %s: %w", args.SessionID, err)
	}

	return nil
}

// Queue manages the River job queue.
type Queue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewQueue creates a queue with its own pgx pool.
func NewQueue(databaseURL string, service *council.Service) (*Queue, error) {
	config := DefaultQueueConfig()

	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &CouncilSessionWorker{service: service})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  config.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &Queue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

// Start starts the queue workers.
func (q *Queue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

// Stop stops the workers and releases the pool.
func (q *Queue) Stop(ctx context.Context) error {
	err := q.client.Stop(ctx)
	q.pool.Close()
	return err
}

// EnqueueSession queues a session for asynchronous execution.
func (q *Queue) EnqueueSession(ctx context.Context, sessionID string, policy council.WeightPolicy) error {
	args := CouncilSessionArgs{
		SessionID:    sessionID,
		WeightPolicy: string(policy),
	}

	_, err := q.client.Insert(ctx, args, &river.InsertOpts{
		MaxAttempts: q.config.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to queue council session %s: %w", sessionID, err)
	}

	log.Debug().Str("session_id", sessionID).Msg("council session queued")
	return nil
}
