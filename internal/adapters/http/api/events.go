package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studylake/studylake/internal/domain/event"
	"github.com/studylake/studylake/pkg/dateparse"
	"github.com/studylake/studylake/pkg/logger"
)

// eventRequest mirrors the wire schema for POST /events. added_at accepts
// either an ISO-8601 string or epoch milliseconds, the two formats devices in
// the field actually send.
type eventRequest struct {
	EventID   string         `json:"event_id"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	CourseID  int64          `json:"course_id"`
	Device    string         `json:"device"`
	Type      string         `json:"type"`
	AddedAt   any            `json:"added_at"`
	Payload   map[string]any `json:"payload"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(e.SessionID) == "":
		return errors.New("missing session_id")
	case strings.TrimSpace(e.Type) == "":
		return errors.New("missing type")
	case e.AddedAt == nil:
		return errors.New("missing added_at")
	}
	if _, err := dateparse.Parse(e.AddedAt); err != nil {
		return errors.New("invalid added_at; must be ISO-8601 or epoch milliseconds")
	}
	return nil
}

type ackResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// handlePostEvent validates an incoming event and hands it to the ingest
// queue. Persistence is asynchronous: 202 means accepted, not stored. A full
// queue answers 429 so devices back off instead of piling on.
func (s *Server) handlePostEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_event", err)
		return
	}

	addedAt, _ := dateparse.Parse(req.AddedAt)
	id := req.EventID
	if id == "" {
		id = uuid.NewString()
	}

	e := event.Raw{
		ID:        id,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		CourseID:  req.CourseID,
		Device:    req.Device,
		Type:      event.Type(req.Type),
		AddedAt:   addedAt,
		Payload:   req.Payload,
	}

	if !s.ingest.Enqueue(c.Request.Context(), e) {
		writeError(c, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
		return
	}

	s.logger.Debug(c.Request.Context(), "event accepted",
		logger.String("eventID", id),
		logger.String("type", req.Type),
	)
	c.JSON(http.StatusAccepted, ackResponse{Status: "accepted", EventID: id})
}
