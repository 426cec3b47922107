package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sagespace/council/pkg/models"
)

type collaborationRequest struct {
	Query          string `json:"query"`
	PrimaryAgentID string `json:"primary_agent_id"`
	// AgentIDs restricts the candidate collaborators. Empty means the
	// whole directory is available.
	AgentIDs []string `json:"agent_ids"`
}

// runCollaboration triggers the detect/initiate/respond/synthesize
// flow for a query and a primary agent.
func (s *Server) runCollaboration(c echo.Context) error {
	var req collaborationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Query == "" || req.PrimaryAgentID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query and primary_agent_id are required"})
	}

	ctx := c.Request().Context()

	primary, err := s.directory.GetAgent(ctx, req.PrimaryAgentID)
	if err != nil {
		return s.councilError(c, err)
	}

	var available []models.Agent
	if len(req.AgentIDs) > 0 {
		available, err = s.directory.GetAgents(ctx, req.AgentIDs)
	} else {
		available, err = s.directory.ListAgents(ctx)
	}
	if err != nil {
		return s.councilError(c, err)
	}

	result, err := s.collab.Run(ctx, req.Query, *primary, available)
	if err != nil {
		return s.councilError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
