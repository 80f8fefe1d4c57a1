package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/watchwise/watchwise/internal/aggregator"
	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/logging"
	"github.com/watchwise/watchwise/internal/telemetry"
	"github.com/watchwise/watchwise/internal/tracker"
)

// timeNow is the clock; replaced in tests.
var timeNow = time.Now

// Handler handles HTTP requests for the watchwise API
type Handler struct {
	manager    *tracker.Manager
	aggregator *aggregator.Aggregator
	telemetry  *telemetry.Provider
	logger     logging.Logger

	serviceName    string
	serviceVersion string
}

// NewHandler creates a new API handler
func NewHandler(
	manager *tracker.Manager,
	agg *aggregator.Aggregator,
	tel *telemetry.Provider,
	logger logging.Logger,
	serviceName, serviceVersion string,
) *Handler {
	return &Handler{
		manager:        manager,
		aggregator:     agg,
		telemetry:      tel,
		logger:         logger,
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.serviceName,
		"version": h.serviceVersion,
	})
}

// Observe handles POST /api/v1/observe. The browser-side collaborator posts
// one page-state observation per signal; the per-context tracker consumes
// the latest one on its next tick.
func (h *Handler) Observe(c *gin.Context) {
	var state domain.PageState
	if err := c.ShouldBindJSON(&state); err != nil {
		h.logger.Warn("Invalid observation", logging.Error(err))
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if state.ContextID == "" {
		respondError(c, http.StatusBadRequest, "contextId is required")
		return
	}
	if state.ObservedAt.IsZero() {
		state.ObservedAt = timeNow()
	}

	h.telemetry.RecordObservation(c.Request.Context())
	h.manager.Observe(state)

	respondOK(c, http.StatusOK, ObserveResponse{
		Received:   true,
		IsTracking: h.manager.Enabled(),
	})
}

// GetStats handles GET /api/v1/stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.aggregator.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read stats", logging.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// StoreVideo handles POST /api/v1/videos: a pre-classified watch item
// submitted directly, bypassing the tracker pipeline.
func (h *Handler) StoreVideo(c *gin.Context) {
	var item domain.WatchItem
	if err := c.ShouldBindJSON(&item); err != nil {
		h.logger.Warn("Invalid watch item", logging.Error(err))
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if item.ID == "" {
		respondError(c, http.StatusBadRequest, "id is required")
		return
	}
	if item.Timestamp == 0 {
		item.Timestamp = timeNow().UnixMilli()
	}

	outcome, err := h.aggregator.Record(c.Request.Context(), item)
	if err != nil {
		h.logger.Error("Failed to store watch item",
			logging.String("video_id", item.ID),
			logging.Error(err),
		)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, http.StatusOK, outcome)
}

// ClearData handles POST /api/v1/data/clear
func (h *Handler) ClearData(c *gin.Context) {
	if err := h.aggregator.Clear(c.Request.Context()); err != nil {
		h.logger.Error("Failed to clear data", logging.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, http.StatusOK, ClearResponse{Cleared: true})
}

// ExportData handles GET /api/v1/data/export
func (h *Handler) ExportData(c *gin.Context) {
	export, err := h.aggregator.Snapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to export data", logging.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, http.StatusOK, export)
}

// ToggleTracking handles POST /api/v1/tracking/toggle: flips the persisted
// toggle and broadcasts the new value to every live tracker.
func (h *Handler) ToggleTracking(c *gin.Context) {
	enabled, err := h.aggregator.ToggleTracking(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to toggle tracking", logging.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.manager.SetEnabled(enabled)
	respondOK(c, http.StatusOK, ToggleResponse{IsTracking: enabled})
}
