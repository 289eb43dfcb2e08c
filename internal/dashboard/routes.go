package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/mailbox"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/registry"
)

// registerRoutes sets up all API routes on the Gin engine.
func registerRoutes(engine *gin.Engine, opts StartOpts) {
	engine.GET("/healthz", handleHealthz())

	api := engine.Group("/api")
	api.POST("/send", handleSend(opts))
	api.GET("/agents", handleAgents(opts))
	api.GET("/health/:agent", handleAgentHealth(opts))
	api.GET("/envelopes/:id", handleEnvelopeHistory(opts))
	api.POST("/envelopes/:id/cancel", handleCancel(opts))
}

func handleHealthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// sendRequest is the POST /api/send body.
type sendRequest struct {
	Sender    string   `json:"sender" binding:"required"`
	Recipient string   `json:"recipient" binding:"required"`
	Body      string   `json:"body" binding:"required"`
	Priority  string   `json:"priority"`
	Tags      []string `json:"tags"`
}

// handleSend accepts an envelope and routes it. The request blocks until the
// envelope reaches a terminal state, so the response carries the outcome.
func handleSend(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		priority := models.Priority(req.Priority)
		if req.Priority == "" {
			priority = models.PriorityNormal
		}

		result, err := opts.Router.Send(c.Request.Context(),
			req.Sender, req.Recipient, req.Body, priority, req.Tags)
		if err != nil {
			switch {
			case registry.IsUnknownAgent(err):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, mailbox.ErrStorage):
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleAgents(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		agents, err := opts.Ledger.Agents()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"agents": agents})
	}
}

func handleAgentHealth(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.Param("agent")
		if !opts.Registry.Known(agentID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown agent: " + agentID})
			return
		}
		summary, err := opts.Ledger.Health(agentID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func handleEnvelopeHistory(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		envelopeID := c.Param("id")
		history, err := opts.Ledger.History(envelopeID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(history) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "envelope not found: " + envelopeID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"envelope_id": envelopeID, "history": history})
	}
}

func handleCancel(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		envelopeID := c.Param("id")
		if err := opts.Router.Cancel(envelopeID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"envelope_id": envelopeID, "cancelled": true})
	}
}
