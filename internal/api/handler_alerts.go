package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeguard-backend/internal/dispatch"
	"safeguard-backend/internal/geo"
	"safeguard-backend/internal/model"
	"safeguard-backend/internal/store"
)

type guestInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type extraContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone" binding:"required"`
}

type sosRequest struct {
	SubjectID   string         `json:"subjectId"`
	SubjectName string         `json:"subjectName"`
	Guest       *guestInfo     `json:"guest"`
	Lat         float64        `json:"lat"`
	Lng         float64        `json:"lng"`
	Kind        string         `json:"kind"`
	Contacts    []extraContact `json:"contacts"`
}

// TriggerSOS handles POST /api/alerts/sos. The fan-out runs synchronously
// so the caller sees per-recipient outcomes; partial failure is a normal
// response, never an error.
func (h *Handler) TriggerSOS(c *gin.Context) {
	var req sosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SubjectID == "" && (req.Guest == nil || req.Guest.Phone == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subjectId or guest info is required"})
		return
	}
	if err := geo.ValidatePoint(geo.Point{Lat: req.Lat, Lng: req.Lng}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := req.Kind
	switch kind {
	case "":
		kind = model.AlertKindSOS
	case model.AlertKindSOS, model.AlertKindAssistance:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be SOS or ASSISTANCE"})
		return
	}

	alert := model.Alert{
		ID:          uuid.NewString(),
		SubjectID:   req.SubjectID,
		SubjectName: req.SubjectName,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Kind:        kind,
		Status:      model.AlertStatusActive,
		Timestamp:   time.Now().UTC(),
	}
	if req.Guest != nil {
		alert.IsGuest = req.SubjectID == ""
		alert.GuestName = req.Guest.Name
		alert.GuestPhone = req.Guest.Phone
		if alert.SubjectName == "" {
			alert.SubjectName = req.Guest.Name
		}
	}

	recipients, err := h.sosRecipients(c, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load contacts"})
		return
	}

	if err := h.store.CreateAlert(c.Request.Context(), &alert); err != nil {
		h.log.Error("failed to create alert", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create alert"})
		return
	}

	content := dispatch.Content{SubjectName: alert.SubjectName, Lat: alert.Lat, Lng: alert.Lng}
	result := h.dispatcher.Dispatch(c.Request.Context(), content, recipients)

	if err := h.store.AppendAttempts(c.Request.Context(), result.Attempts(alert.ID)); err != nil {
		h.log.Error("failed to record notification attempts",
			zap.String("alert", alert.ID),
			zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{
		"alertId":      alert.ID,
		"status":       alert.Status,
		"anySucceeded": result.AnySucceeded,
		"perRecipient": result.PerRecipient,
	})
}

// sosRecipients merges the subject's verified contacts with any extra
// numbers supplied on the request. A guest with no registered contacts
// still reaches the numbers they typed in.
func (h *Handler) sosRecipients(c *gin.Context, req sosRequest) ([]dispatch.Recipient, error) {
	var recipients []dispatch.Recipient
	if req.SubjectID != "" {
		contacts, err := h.store.VerifiedContacts(c.Request.Context(), req.SubjectID)
		if err != nil {
			return nil, err
		}
		for _, contact := range contacts {
			recipients = append(recipients, dispatch.Recipient{Name: contact.Name, Phone: contact.Phone})
		}
	}
	for _, extra := range req.Contacts {
		recipients = append(recipients, dispatch.Recipient{Name: extra.Name, Phone: extra.Phone})
	}
	return recipients, nil
}

// ListAlerts handles GET /api/alerts?subject=.
func (h *Handler) ListAlerts(c *gin.Context) {
	alerts, err := h.store.ListAlerts(c.Request.Context(), c.Query("subject"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetAlert handles GET /api/alerts/:id.
func (h *Handler) GetAlert(c *gin.Context) {
	alert, err := h.store.GetAlert(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

type updateAlertRequest struct {
	Status     string `json:"status" binding:"required"`
	ResolvedBy string `json:"resolvedBy"`
	Notes      string `json:"notes"`
}

// UpdateAlertStatus handles PATCH /api/alerts/:id. Only transitions out of
// ACTIVE are allowed; terminal alerts answer 409.
func (h *Handler) UpdateAlertStatus(c *gin.Context) {
	var req updateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !model.TerminalStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be RESOLVED or FALSE_ALARM"})
		return
	}

	err := h.store.UpdateAlertStatus(c.Request.Context(), c.Param("id"), req.Status, req.ResolvedBy, req.Notes)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
	case errors.Is(err, store.ErrTerminalStatus):
		c.JSON(http.StatusConflict, gin.H{"error": "alert is already resolved"})
	case err != nil:
		h.log.Error("failed to update alert", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update alert"})
	default:
		alert, err := h.store.GetAlert(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, alert)
	}
}
