package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/ratelimit"
	"apartment-locator/internal/scheduler"
)

// EditHandler serves field corrections, overlays and scraper refreshes
type EditHandler struct {
	service *edits.Service
	worker  *scheduler.RefreshWorker
	limiter *ratelimit.RateLimiter
	logger  *zap.Logger
}

// NewEditHandler creates a new edit handler. worker and limiter may be nil.
func NewEditHandler(service *edits.Service, worker *scheduler.RefreshWorker, limiter *ratelimit.RateLimiter, logger *zap.Logger) *EditHandler {
	return &EditHandler{
		service: service,
		worker:  worker,
		limiter: limiter,
		logger:  logger,
	}
}

type createEditRequest struct {
	TargetType   fields.TargetType `json:"target_type" binding:"required"`
	TargetID     string            `json:"target_id" binding:"required"`
	FieldName    string            `json:"field_name" binding:"required"`
	NewValue     fields.Value      `json:"new_value"`
	ScrapedValue fields.Value      `json:"scraped_value"`
}

// CreateEdit records a human correction
func (h *EditHandler) CreateEdit(c *gin.Context) {
	var req createEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	field, err := fields.Parse(req.TargetType, req.FieldName)
	if err != nil {
		respondError(c, err)
		return
	}

	if cf, ok := field.(fields.ClientField); ok {
		rec, err := h.service.CreateClientEdit(c.Request.Context(), cf, req.TargetID, req.NewValue, userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
		return
	}

	rec, err := h.service.CreateEdit(c.Request.Context(), edits.CreateEditRequest{
		Field:        field,
		TargetID:     req.TargetID,
		NewValue:     req.NewValue,
		EditedBy:     userID(c),
		ScrapedValue: req.ScrapedValue,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type overlayRequest struct {
	TargetType fields.TargetType `json:"target_type" binding:"required"`
	TargetID   string            `json:"target_id" binding:"required"`
	Snapshot   edits.Snapshot    `json:"snapshot"`
}

// Overlay applies the edit log to a scraped snapshot of one entity
func (h *EditHandler) Overlay(c *gin.Context) {
	var req overlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.service.Aggregate(c.Request.Context(), req.TargetType, req.TargetID, req.Snapshot)
	if err != nil {
		respondError(c, err)
		return
	}

	conflicts := 0
	for _, f := range result {
		if f.HasConflict {
			conflicts++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"target_type": req.TargetType,
		"target_id":   req.TargetID,
		"fields":      result,
		"conflicts":   conflicts,
	})
}

type resolveRequest struct {
	EditID     int64  `json:"edit_id" binding:"required"`
	Resolution string `json:"resolution" binding:"required"`
}

// ResolveConflict applies keep_locator or accept_scraper to a flagged edit
func (h *EditHandler) ResolveConflict(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.service.ResolveConflict(c.Request.Context(), req.EditID, req.Resolution, userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"edit_id":    req.EditID,
		"resolution": req.Resolution,
		"status":     "resolved",
		"success":    true,
	})
}

// History returns the edit log of one field, most recent first
func (h *EditHandler) History(c *gin.Context) {
	targetType := fields.TargetType(c.Query("target_type"))
	targetID := c.Query("target_id")
	if targetID == "" {
		respondError(c, &edits.ValidationError{Field: "target_id", Message: "target_id is required"})
		return
	}

	field, err := fields.Parse(targetType, c.Query("field_name"))
	if err != nil {
		respondError(c, err)
		return
	}

	if cf, ok := field.(fields.ClientField); ok {
		history, err := h.service.ClientHistory(c.Request.Context(), cf, targetID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
		return
	}

	history, err := h.service.History(c.Request.Context(), fields.Key{Field: field, TargetID: targetID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

type observationPayload struct {
	TargetType fields.TargetType `json:"target_type"`
	TargetID   string            `json:"target_id"`
	FieldName  string            `json:"field_name"`
	Value      fields.Value      `json:"value"`
}

type refreshRequest struct {
	Observations []observationPayload `json:"observations" binding:"required"`
	Async        bool                 `json:"async"`
}

// Refresh runs conflict detection for one scraper pass. With async set and a
// worker configured the batch is queued and 202 is returned.
func (h *EditHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	observations := make([]edits.Observation, 0, len(req.Observations))
	for i, o := range req.Observations {
		field, err := fields.Parse(o.TargetType, o.FieldName)
		if err != nil {
			respondError(c, fmt.Errorf("observation %d: %w", i, err))
			return
		}
		observations = append(observations, edits.Observation{Field: field, TargetID: o.TargetID, Value: o.Value})
	}

	if req.Async {
		if h.worker == nil {
			respondError(c, fmt.Errorf("%w: refresh worker is not running", ErrUnavailable))
			return
		}
		batchID, err := h.worker.Enqueue(observations)
		if err != nil {
			respondError(c, err)
			return
		}
		h.logger.Info("refresh batch queued",
			zap.String("batch_id", batchID),
			zap.Int("observations", len(observations)),
			zap.String("user_id", userID(c)))
		c.JSON(http.StatusAccepted, gin.H{
			"batch_id": batchID,
			"status":   "queued",
		})
		return
	}

	summary := h.service.ObserveRefresh(c.Request.Context(), observations)
	c.JSON(http.StatusOK, summary)
}

// RefreshStats returns the caller's rate limit usage and worker progress
func (h *EditHandler) RefreshStats(c *gin.Context) {
	resp := gin.H{}
	if h.limiter != nil {
		resp["rate_limit"] = h.limiter.GetStats(ratelimit.ByUserOrIP(c))
	}
	if h.worker != nil {
		resp["queue"] = h.worker.Stats()
	}
	c.JSON(http.StatusOK, resp)
}
