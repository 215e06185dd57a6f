// Package api is the external API adapter: it translates HTTP and WebSocket
// requests into orchestrator calls and streams progress events to real-time
// subscribers.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentfleet/maestro/pkg/models"
	"github.com/agentfleet/maestro/pkg/orchestrator"
	"github.com/agentfleet/maestro/pkg/workflow"

	"github.com/gin-gonic/gin"
)

// Server hosts the HTTP surface over one orchestrator.
type Server struct {
	router *gin.Engine
	orch   *orchestrator.Orchestrator
	hub    *Hub
	log    *slog.Logger
}

// NewServer builds the router and wires the WebSocket hub onto the
// orchestrator's progress bus.
func NewServer(orch *orchestrator.Orchestrator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		router: gin.New(),
		orch:   orch,
		hub:    NewHub(orch.Bus(), 10*time.Second, log),
		log:    log,
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Router exposes the gin engine (for tests and custom servers).
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves HTTP on the given address until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("HTTP server listening", "addr", addr)
	return s.router.Run(addr)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)

		v1.POST("/tasks", s.handleExecuteTask)
		v1.GET("/tasks", s.handleListTasks)
		v1.GET("/tasks/:id", s.handleGetTask)

		v1.GET("/agents", s.handleListAgents)
		v1.GET("/agents/:id", s.handleGetAgent)
		v1.POST("/agents", s.handleCreateAgent)
		v1.POST("/agents/:id/messages", s.handleSendMessage)
		v1.DELETE("/agents/:id", s.handleDeleteAgent)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"fleet":  s.orch.Registry().FleetSummary(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.GetStatus())
}

func (s *Server) handleExecuteTask(c *gin.Context) {
	var req ExecuteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if req.TaskType == "" {
		req.TaskType = workflow.TypeCustom
	}
	if req.ExecutionMode == "" {
		req.ExecutionMode = "sequential"
	}

	// The task runs detached from the request context: disconnecting the
	// HTTP client must not abort in-flight agents.
	taskID, _, err := s.orch.Submit(context.Background(), req.Prompt, req.TaskType, req.ExecutionMode)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, TaskAcceptedResponse{TaskID: taskID, Status: "in_progress"})
}

func (s *Server) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": s.orch.ListTasks()})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task := s.orch.GetTask(c.Param("id"))
	if task == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.orch.ListAgents()})
}

func (s *Server) handleGetAgent(c *gin.Context) {
	details := s.orch.GetAgentDetails(c.Param("id"))
	if details == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "agent not found"})
		return
	}
	c.JSON(http.StatusOK, details)
}

func (s *Server) handleCreateAgent(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	agentID := s.orch.CreateAgent(role, req.Name, req.SystemPrompt)
	c.JSON(http.StatusCreated, AgentCreatedResponse{AgentID: agentID})
}

func (s *Server) handleSendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	agentID := c.Param("id")
	response, err := s.orch.SendToAgent(c.Request.Context(), agentID, req.Message)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{AgentID: agentID, Response: response})
}

func (s *Server) handleDeleteAgent(c *gin.Context) {
	if !s.orch.DeleteAgent(c.Param("id")) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "agent not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
