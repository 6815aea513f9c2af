package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"listingpilot/backend/internal/api/middleware"
	"listingpilot/backend/internal/dispatch"
	"listingpilot/backend/internal/mapping"
	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/orchestrator"
	"listingpilot/backend/internal/recorder"
	"listingpilot/backend/pkg/response"
)

const SourceHTTP = "http"

// Engine is the orchestrator as seen by the API.
type Engine interface {
	Status() orchestrator.Status
	Busy() bool
}

// MessageHandler is satisfied by dispatch.Dispatcher.
type MessageHandler interface {
	Handle(ctx context.Context, msg dispatch.Message, source string) models.OperationResult
}

// Recordings is satisfied by recorder.Manager.
type Recordings interface {
	Start() (string, error)
	Stop(sessionID string) error
	Active() bool
	Get(sessionID string) (*recorder.Wizard, bool)
	Status(sessionID string) (recorder.Snapshot, error)
	Cleanup(sessionID string)
}

// Attempts reads posting history. It is nil when the database is disabled.
type Attempts interface {
	List(ctx context.Context, page, pageSize int) ([]models.PostingAttempt, int64, error)
	Get(ctx context.Context, attemptID string) (*models.PostingAttempt, error)
}

type API struct {
	Engine     Engine
	Messages   MessageHandler
	Mappings   mapping.Store
	Recordings Recordings
	Attempts   Attempts
	StartedAt  time.Time
}

// PostMessage is the HTTP rendition of the invocation contract. Ping is
// answered for anyone; every other action needs a token.
func (a *API) PostMessage(c *gin.Context) {
	var msg dispatch.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if msg.Action != dispatch.ActionPing {
		if _, ok := c.Get(middleware.OperatorKey); !ok {
			response.Unauthorized(c, "Missing or invalid token")
			return
		}
	}
	response.Result(c, a.Messages.Handle(c.Request.Context(), msg, SourceHTTP))
}

func (a *API) GetStatus(c *gin.Context) {
	response.Success(c, gin.H{
		"engine":    a.Engine.Status(),
		"recording": a.Recordings != nil && a.Recordings.Active(),
	})
}

func (a *API) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"status":    "healthy",
			"uptime":    time.Since(a.StartedAt).Round(time.Second).String(),
			"timestamp": time.Now().Unix(),
		},
	})
}
