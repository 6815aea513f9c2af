package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"listingpilot/backend/internal/recorder"
	"listingpilot/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (a *API) StartRecording(c *gin.Context) {
	sessionID, err := a.Recordings.Start()
	if errors.Is(err, recorder.ErrAlreadyRecording) || errors.Is(err, recorder.ErrPostingInFlight) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		response.InternalServerError(c, "Failed to start field mapping: "+err.Error())
		return
	}

	log.Printf("🎬 Field mapping session %s started", sessionID)
	response.SuccessWithMessage(c, "Field mapping started", gin.H{
		"session_id": sessionID,
	})
}

func (a *API) StopRecording(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := a.Recordings.Stop(req.SessionID); err != nil {
		response.NotFound(c, err.Error())
		return
	}
	snapshot, _ := a.Recordings.Status(req.SessionID)
	a.Recordings.Cleanup(req.SessionID)

	response.SuccessWithMessage(c, "Field mapping stopped", snapshot)
}

func (a *API) GetRecordingStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return
	}

	snapshot, err := a.Recordings.Status(sessionID)
	if err != nil {
		response.NotFound(c, "Recording session not found")
		return
	}
	response.Success(c, snapshot)
}

// RecordingWebSocket streams wizard progress. The session id is the
// credential: it is only handed out to an authenticated start call.
func (a *API) RecordingWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	wizard, exists := a.Recordings.Get(sessionID)
	if !exists {
		conn.WriteJSON(gin.H{"error": "Recording session not found"})
		return
	}

	if err := conn.WriteJSON(gin.H{"type": "snapshot", "data": wizard.Snapshot()}); err != nil {
		return
	}
	wizard.SetWebSocketConnection(conn)
	defer wizard.SetWebSocketConnection(nil)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("WebSocket closed for session %s: %v", sessionID, err)
			break
		}
	}
}
