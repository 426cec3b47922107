package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sagespace/council/internal/retry"
)

// ResilientClient wraps a Client with retry logic, a per-call timeout,
// and a shared rate limiter so a wide agent fan-out cannot stampede the
// provider. It implements Client itself.
type ResilientClient struct {
	client      Client
	retryConfig retry.Config
	limiter     *rate.Limiter
	timeout     time.Duration
}

// ResilientOptions configures the wrapper.
type ResilientOptions struct {
	Retry             retry.Config
	Timeout           time.Duration // per-call deadline, 0 = 45s default
	RequestsPerSecond float64       // 0 = unlimited
}

// NewResilientClient creates a resilient wrapper around client.
func NewResilientClient(client Client, opts ResilientOptions) *ResilientClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &ResilientClient{
		client:      client,
		retryConfig: opts.Retry,
		limiter:     limiter,
		timeout:     timeout,
	}
}

// NewResilientClientWithDefaults wraps client with LLM-tuned retries
// and the default timeout.
func NewResilientClientWithDefaults(client Client) *ResilientClient {
	return NewResilientClient(client, ResilientOptions{Retry: retry.LLMConfig()})
}

// Generate runs the request through the limiter, timeout, and retry
// loop. The caller's context still governs overall cancellation.
func (rc *ResilientClient) Generate(ctx context.Context, req Request) (string, error) {
	if rc.limiter != nil {
		if err := rc.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	var response string
	result := retry.Do(ctx, rc.retryConfig, func() error {
		callCtx, cancel := context.WithTimeout(ctx, rc.timeout)
		defer cancel()

		out, err := rc.client.Generate(callCtx, req)
		if err != nil {
			return err
		}
		response = out
		return nil
	})

	if !result.Success {
		log.Warn().
			Err(result.LastError).
			Int("attempts", result.Attempts).
			Dur("total_duration", result.TotalDuration).
			Msg("LLM request failed")
		return "", result.LastError
	}

	return response, nil
}
