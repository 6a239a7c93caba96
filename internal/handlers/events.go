package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/middleware"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

// EventStream is the durable event history.
type EventStream interface {
	RecentEvents(ctx context.Context, count int64) ([]models.Event, error)
}

type EventsHandler struct {
	recent *services.EventLog
	stream EventStream
	access *services.AccessControl
	log    *logrus.Logger
}

func NewEventsHandler(recent *services.EventLog, stream EventStream, access *services.AccessControl, log *logrus.Logger) *EventsHandler {
	return &EventsHandler{
		recent: recent,
		stream: stream,
		access: access,
		log:    log,
	}
}

// GetEvents lists recent events involving the caller. The owner sees every
// event and may read the durable stream with ?source=stream.
func (h *EventsHandler) GetEvents(c *gin.Context) {
	caller := middleware.Principal(c)
	limit := queryLimit(c, 50, 100)
	isOwner := caller == h.access.Owner()

	if c.Query("source") == "stream" {
		if !isOwner {
			c.JSON(http.StatusForbidden, gin.H{"error": "Owner access required", "code": "Unauthorized"})
			return
		}
		if h.stream == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event stream not configured"})
			return
		}
		events, err := h.stream.RecentEvents(c.Request.Context(), int64(limit))
		if err != nil {
			h.log.WithError(err).Error("failed to read event stream")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read event stream"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
		return
	}

	var events []models.Event
	if isOwner {
		events = h.recent.Recent(limit)
	} else {
		events = h.recent.ForPrincipal(caller, limit)
	}
	if events == nil {
		events = []models.Event{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  events,
	})
}
