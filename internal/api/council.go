package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/sagespace/council/internal/agents"
	"github.com/sagespace/council/internal/council"
	"github.com/sagespace/council/pkg/models"
)

type createSessionRequest struct {
	Query     string `json:"query"`
	QueryType string `json:"query_type"`
	// AgentIDs selects the participants. Empty convenes the whole
	// directory.
	AgentIDs           []string `json:"agent_ids"`
	ConsensusThreshold *float64 `json:"consensus_threshold"`
	WeightPolicy       string   `json:"weight_policy"`
}

func (s *Server) sessionParams(c echo.Context, req createSessionRequest) (council.SessionParams, error) {
	ctx := c.Request().Context()

	var participants []models.Agent
	var err error
	if len(req.AgentIDs) > 0 {
		participants, err = s.directory.GetAgents(ctx, req.AgentIDs)
	} else {
		participants, err = s.directory.ListAgents(ctx)
	}
	if err != nil {
		return council.SessionParams{}, err
	}

	threshold := s.defaultThreshold
	if req.ConsensusThreshold != nil {
		threshold = *req.ConsensusThreshold
	}

	return council.SessionParams{
		Query:              req.Query,
		QueryType:          req.QueryType,
		Agents:             participants,
		ConsensusThreshold: threshold,
		WeightPolicy:       council.WeightPolicy(req.WeightPolicy),
	}, nil
}

// createSession runs a full council session synchronously and returns
// the terminal state.
func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	params, err := s.sessionParams(c, req)
	if err != nil {
		return s.councilError(c, err)
	}

	detail, err := s.council.RunSession(c.Request().Context(), params)
	if err != nil {
		return s.councilError(c, err)
	}

	return c.JSON(http.StatusOK, detail)
}

// createSessionAsync persists a pending session and queues its
// execution.
func (s *Server) createSessionAsync(c echo.Context) error {
	if s.queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "async execution is not enabled"})
	}

	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	params, err := s.sessionParams(c, req)
	if err != nil {
		return s.councilError(c, err)
	}

	ctx := c.Request().Context()
	session, err := s.council.CreateSession(ctx, params)
	if err != nil {
		return s.councilError(c, err)
	}

	if err := s.queue.EnqueueSession(ctx, session.ID, params.WeightPolicy); err != nil {
		return s.councilError(c, err)
	}

	return c.JSON(http.StatusAccepted, session)
}

func (s *Server) getSession(c echo.Context) error {
	detail, err := s.council.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.councilError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) listSessions(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.sessions.ListSessions(c.Request().Context(), limit, offset)
	if err != nil {
		return s.councilError(c, err)
	}
	if sessions == nil {
		sessions = []models.CouncilSession{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) listAgents(c echo.Context) error {
	list, err := s.directory.ListAgents(c.Request().Context())
	if err != nil {
		return s.councilError(c, err)
	}
	if list == nil {
		list = []models.Agent{}
	}
	return c.JSON(http.StatusOK, map[string]any{"agents": list})
}

// councilError maps service errors onto HTTP statuses without leaking
// internals.
func (s *Server) councilError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, council.ErrInvalidConfiguration), errors.Is(err, agents.ErrAgentNotFound):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, council.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, council.ErrNoAgentsSucceeded):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("council request failed")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
