package council

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfiguration rejects a session synchronously before
	// any external calls are made.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNoAgentsSucceeded marks a session where every agent call
	// failed; distinct from a no_consensus outcome.
	ErrNoAgentsSucceeded = errors.New("no agents succeeded")

	// ErrSessionNotFound is returned for read-backs of unknown sessions.
	ErrSessionNotFound = errors.New("council session not found")
)

// AgentError reports that a specific agent's reasoning call failed.
// The agent is excluded from the vote tally; the session continues
// with the surviving subset.
type AgentError struct {
	AgentID   string
	AgentName string
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s (%s) unavailable: %v", e.AgentName, e.AgentID, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// PersistenceError reports that the backing store rejected a write.
// Surfaced as a hard failure; partial state is never presented as
// success.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func joinAgentErrors(errs []*AgentError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}
