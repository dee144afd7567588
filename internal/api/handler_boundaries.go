package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeguard-backend/internal/geo"
	"safeguard-backend/internal/geofence"
	"safeguard-backend/internal/model"
	"safeguard-backend/internal/store"
)

type boundaryRequest struct {
	OwnerID       string              `json:"ownerId"`
	Name          string              `json:"name"`
	Kind          string              `json:"kind"`
	Center        *geo.Point          `json:"center"`
	RadiusMeters  float64             `json:"radiusMeters"`
	Vertices      []geo.Point         `json:"vertices"`
	Schedule      *model.ScheduleSpec `json:"schedule"`
	Active        *bool               `json:"active"`
	NotifyOnEnter *bool               `json:"notifyOnEnter"`
	NotifyOnExit  *bool               `json:"notifyOnExit"`
}

// toRecord builds the boundary record for a create. Toggles default to on.
func (r boundaryRequest) toRecord(id string) model.Boundary {
	rec := model.Boundary{
		ID:            id,
		OwnerID:       r.OwnerID,
		Name:          r.Name,
		Kind:          r.Kind,
		RadiusMeters:  r.RadiusMeters,
		Vertices:      model.PointList(r.Vertices),
		Active:        true,
		NotifyOnEnter: true,
		NotifyOnExit:  true,
	}
	if r.Kind == model.BoundaryKindCircle && r.Center != nil {
		rec.Vertices = model.PointList{*r.Center}
	}
	if r.Schedule != nil {
		rec.Schedule = *r.Schedule
	}
	if r.Active != nil {
		rec.Active = *r.Active
	}
	if r.NotifyOnEnter != nil {
		rec.NotifyOnEnter = *r.NotifyOnEnter
	}
	if r.NotifyOnExit != nil {
		rec.NotifyOnExit = *r.NotifyOnExit
	}
	return rec
}

// applyTo overlays the set fields of a partial update onto an existing record.
func (r boundaryRequest) applyTo(rec *model.Boundary) {
	if r.Name != "" {
		rec.Name = r.Name
	}
	if r.Kind != "" {
		rec.Kind = r.Kind
	}
	if r.Center != nil {
		rec.Vertices = model.PointList{*r.Center}
	}
	if len(r.Vertices) > 0 {
		rec.Vertices = model.PointList(r.Vertices)
	}
	if r.RadiusMeters > 0 {
		rec.RadiusMeters = r.RadiusMeters
	}
	if r.Schedule != nil {
		rec.Schedule = *r.Schedule
	}
	if r.Active != nil {
		rec.Active = *r.Active
	}
	if r.NotifyOnEnter != nil {
		rec.NotifyOnEnter = *r.NotifyOnEnter
	}
	if r.NotifyOnExit != nil {
		rec.NotifyOnExit = *r.NotifyOnExit
	}
}

// ListBoundaries handles GET /api/geofences.
func (h *Handler) ListBoundaries(c *gin.Context) {
	boundaries, err := h.store.LoadBoundaries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load geofences"})
		return
	}
	c.JSON(http.StatusOK, boundaries)
}

// CreateBoundary handles POST /api/geofences. The record only persists if
// it passes engine validation: store and engine stay in lockstep.
func (h *Handler) CreateBoundary(c *gin.Context) {
	var req boundaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec := req.toRecord(uuid.NewString())
	h.saveBoundary(c, rec, http.StatusCreated)
}

// UpdateBoundary handles PATCH /api/geofences/:id.
func (h *Handler) UpdateBoundary(c *gin.Context) {
	var req boundaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.store.GetBoundary(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "geofence not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load geofence"})
		return
	}

	req.applyTo(&rec)
	h.saveBoundary(c, rec, http.StatusOK)
}

func (h *Handler) saveBoundary(c *gin.Context, rec model.Boundary, okStatus int) {
	domain, err := geofence.FromRecord(rec)
	if err != nil {
		var verr *geo.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SaveBoundary(c.Request.Context(), &rec); err != nil {
		h.log.Error("failed to save geofence", zap.String("id", rec.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save geofence"})
		return
	}
	if err := h.engine.UpsertBoundary(domain); err != nil {
		// Already validated above; an engine rejection here is a bug.
		h.log.Error("engine rejected validated geofence", zap.String("id", rec.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to activate geofence"})
		return
	}

	c.JSON(okStatus, rec)
}

// DeleteBoundary handles DELETE /api/geofences/:id.
func (h *Handler) DeleteBoundary(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteBoundary(c.Request.Context(), id); err != nil {
		h.log.Error("failed to delete geofence", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete geofence"})
		return
	}
	h.engine.RemoveBoundary(id)
	c.Status(http.StatusNoContent)
}
