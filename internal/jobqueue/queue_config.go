package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds the tunable parameters for the session queue.
type QueueConfig struct {
	// MaxWorkers is the number of sessions executed concurrently. Each
	// session already fans out its own agent calls, so keep this low.
	MaxWorkers int

	// MaxRetries is the maximum attempts per job. Sessions are
	// idempotent once terminal, so retries only re-run unfinished work.
	MaxRetries int

	// JobTimeout bounds one session execution end to end.
	JobTimeout time.Duration
}

// DefaultQueueConfig returns the default configuration.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers: 4,
		MaxRetries: 5,
		JobTimeout: 10 * time.Minute,
	}
}

// RiverQueueConfig converts the config to River's queue format.
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
