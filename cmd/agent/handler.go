package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dileep-u-k/openapi-agent/internal/api"
	"github.com/dileep-u-k/openapi-agent/internal/apicall"
	"github.com/dileep-u-k/openapi-agent/internal/llm"
	"github.com/dileep-u-k/openapi-agent/internal/stats"
	"github.com/dileep-u-k/openapi-agent/internal/tools"
	"github.com/dileep-u-k/openapi-agent/internal/version"
)

// AgentHandler serves the agent over HTTP.
type AgentHandler struct {
	app *App
}

func NewAgentHandler(app *App) *AgentHandler {
	return &AgentHandler{app: app}
}

// Register mounts every route on engine.
func (h *AgentHandler) Register(engine *gin.Engine) {
	engine.GET("/healthz", h.HandleHealth)
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/chat", h.HandleChat)
		v1.GET("/tools", h.HandleListTools)
		v1.GET("/headers", h.HandleGetHeaders)
		v1.PUT("/headers", h.HandleSetHeaders)
		v1.DELETE("/headers", h.HandleResetHeaders)
		v1.GET("/stats/:kind/:name", h.HandleStats)
	}
}

func (h *AgentHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "build": version.Get()})
}

func (h *AgentHandler) HandleChat(c *gin.Context) {
	startTime := time.Now()
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	var prior []llm.Message
	if len(req.History) > 0 {
		if err := json.Unmarshal(req.History, &prior); err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid history: " + err.Error()})
			return
		}
	}

	runID := uuid.NewString()
	log.Printf("--- New Chat (Run: %s, Query: '%.30s...') ---", runID, req.Query)

	orch, err := h.app.Orchestrator(c.Request.Context(), req.Model, req.MaxTokens)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: err.Error()})
		return
	}

	res, err := orch.Run(c.Request.Context(), req.Query, prior, nil)
	if err != nil {
		status := http.StatusInternalServerError
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			status = http.StatusBadGateway
		}
		c.JSON(status, api.ErrorResponse{Error: err.Error()})
		return
	}

	messages, err := json.Marshal(res.Transcript())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to encode conversation: " + err.Error()})
		return
	}
	executions, err := json.Marshal(orch.History().All())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to encode tool executions: " + err.Error()})
		return
	}

	latency := time.Since(startTime)
	log.Printf("✅ Run %s finished: %s after %d iterations in %dms", runID, res.StopReason, res.Iterations, latency.Milliseconds())
	c.JSON(http.StatusOK, api.ChatResponse{
		RunID:          runID,
		Content:        res.Response.Text(),
		StopReason:     string(res.StopReason),
		Iterations:     res.Iterations,
		Usage:          res.Usage,
		LatencyMS:      latency.Milliseconds(),
		Messages:       messages,
		ToolExecutions: executions,
	})
}

func (h *AgentHandler) HandleListTools(c *gin.Context) {
	validated := tools.Validate(h.app.toolset)
	out := make([]api.ToolSummary, 0, len(validated))
	for i, t := range validated {
		summary := api.ToolSummary{Name: t.Name, Description: t.Description}
		if original := h.app.toolset[i].Name; original != t.Name {
			summary.OriginalName = original
		}
		out = append(out, summary)
	}
	c.JSON(http.StatusOK, out)
}

func (h *AgentHandler) HandleGetHeaders(c *gin.Context) {
	c.JSON(http.StatusOK, apicall.MaskHeaders(h.app.headers.GetAll()))
}

func (h *AgentHandler) HandleSetHeaders(c *gin.Context) {
	var update api.HeaderUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}
	for name, value := range update.Headers {
		h.app.headers.Set(name, value)
	}
	log.Printf("🔧 Updated %d default headers", len(update.Headers))
	c.JSON(http.StatusOK, apicall.MaskHeaders(h.app.headers.GetAll()))
}

func (h *AgentHandler) HandleResetHeaders(c *gin.Context) {
	h.app.headers.Reset()
	c.JSON(http.StatusOK, apicall.MaskHeaders(h.app.headers.GetAll()))
}

func (h *AgentHandler) HandleStats(c *gin.Context) {
	if h.app.profiler == nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "usage stats are disabled (REDIS_ADDR not set)"})
		return
	}
	var kind stats.Kind
	switch c.Param("kind") {
	case "models":
		kind = stats.KindModel
	case "tools":
		kind = stats.KindTool
	default:
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: fmt.Sprintf("unknown stats kind %q", c.Param("kind"))})
		return
	}
	profile, err := h.app.profiler.Get(c.Request.Context(), kind, c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}
