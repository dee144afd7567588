package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"safeguard-backend/internal/dispatch"
	"safeguard-backend/internal/geofence"
	"safeguard-backend/internal/store"
	"safeguard-backend/internal/tracker"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	engine     *geofence.Engine
	tracker    *tracker.Tracker
	dispatcher *dispatch.Dispatcher
	webpush    *webpush.Options
	log        *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, engine *geofence.Engine, tr *tracker.Tracker, d *dispatch.Dispatcher, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:      s,
		engine:     engine,
		tracker:    tr,
		dispatcher: d,
		webpush:    webpushOptions,
		log:        log,
	}
}
