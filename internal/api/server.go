// Package api exposes the council engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sagespace/council/internal/collab"
	"github.com/sagespace/council/internal/council"
	"github.com/sagespace/council/pkg/models"
)

// CouncilService is the session surface the handlers need.
type CouncilService interface {
	CreateSession(ctx context.Context, p council.SessionParams) (*models.CouncilSession, error)
	RunSession(ctx context.Context, p council.SessionParams) (*models.CouncilSessionDetail, error)
	GetSession(ctx context.Context, sessionID string) (*models.CouncilSessionDetail, error)
}

// SessionLister pages through past sessions.
type SessionLister interface {
	ListSessions(ctx context.Context, limit, offset int) ([]models.CouncilSession, error)
}

// AgentDirectory resolves agent ids to directory records.
type AgentDirectory interface {
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	GetAgents(ctx context.Context, ids []string) ([]models.Agent, error)
	ListAgents(ctx context.Context) ([]models.Agent, error)
}

// CollabRunner runs auto-detected collaborations.
type CollabRunner interface {
	Run(ctx context.Context, query string, primary models.Agent, available []models.Agent) (*collab.Result, error)
}

// Enqueuer queues sessions for asynchronous execution. Nil disables the
// async endpoint.
type Enqueuer interface {
	EnqueueSession(ctx context.Context, sessionID string, policy council.WeightPolicy) error
}

// Server represents the API server
type Server struct {
	echo *echo.Echo
	port int

	council   CouncilService
	sessions  SessionLister
	directory AgentDirectory
	collab    CollabRunner
	queue     Enqueuer

	defaultThreshold float64
}

// Deps carries the services the server fronts.
type Deps struct {
	Council   CouncilService
	Sessions  SessionLister
	Directory AgentDirectory
	Collab    CollabRunner
	Queue     Enqueuer

	// DefaultThreshold applies when a request omits
	// consensus_threshold.
	DefaultThreshold float64
}

// NewServer creates a new API server
func NewServer(port int, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:             e,
		port:             port,
		council:          deps.Council,
		sessions:         deps.Sessions,
		directory:        deps.Directory,
		collab:           deps.Collab,
		queue:            deps.Queue,
		defaultThreshold: deps.DefaultThreshold,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	// Council endpoints
	v1.POST("/council/sessions", s.createSession)
	v1.POST("/council/sessions/async", s.createSessionAsync)
	v1.GET("/council/sessions", s.listSessions)
	v1.GET("/council/sessions/:id", s.getSession)

	// Agent directory endpoints
	v1.GET("/agents", s.listAgents)

	// Collaboration endpoint
	v1.POST("/collaborations", s.runCollaboration)
}

// Start begins the API server and blocks until interrupted.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
