package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"safeguard-backend/internal/geo"
	"safeguard-backend/internal/geofence"
)

type pushLocationRequest struct {
	SubjectID   string    `json:"subjectId" binding:"required"`
	SubjectName string    `json:"subjectName"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Accuracy    float64   `json:"accuracy"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
}

// PushLocation handles POST /api/locations: one sample in, the transitions
// it caused out.
func (h *Handler) PushLocation(c *gin.Context) {
	var req pushLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.tracker.Push(c.Request.Context(), req.SubjectID, req.SubjectName, geofence.Sample{
		Lat:       req.Lat,
		Lng:       req.Lng,
		Accuracy:  req.Accuracy,
		Source:    req.Source,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		var verr *geo.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process sample"})
		return
	}

	if events == nil {
		events = []geofence.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetLocationHistory handles GET /api/locations?subject=&limit=.
func (h *Handler) GetLocationHistory(c *gin.Context) {
	subject := c.Query("subject")
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject is required"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	samples, err := h.store.RecentSamples(c.Request.Context(), subject, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, samples)
}
