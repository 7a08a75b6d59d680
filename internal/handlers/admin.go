package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"apartment-locator/internal/edits"
	"apartment-locator/internal/scheduler"
	"apartment-locator/internal/search"
)

// ConflictSearcher queries the conflict review index
type ConflictSearcher interface {
	Search(params search.FilterParams) (*search.SearchResult, error)
}

// breakerReporter is implemented by searchers guarded by a circuit breaker
type breakerReporter interface {
	BreakerStatus() search.BreakerStatus
}

// AdminHandler handles the operator conflict review screens
type AdminHandler struct {
	service   *edits.Service
	searcher  ConflictSearcher
	scheduler *scheduler.Scheduler
	logger    *zap.Logger
}

// NewAdminHandler creates a new admin handler. searcher and sched may be nil
// when search is disabled.
func NewAdminHandler(service *edits.Service, searcher ConflictSearcher, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		service:   service,
		searcher:  searcher,
		scheduler: sched,
		logger:    logger,
	}
}

// ListConflicts returns every unresolved conflict, oldest first
func (h *AdminHandler) ListConflicts(c *gin.Context) {
	conflicts, err := h.service.UnresolvedConflicts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if targetType := c.Query("target_type"); targetType != "" {
		filtered := conflicts[:0]
		for _, rec := range conflicts {
			if string(rec.TargetType) == targetType {
				filtered = append(filtered, rec)
			}
		}
		conflicts = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"conflicts": conflicts,
		"count":     len(conflicts),
	})
}

// SearchConflicts runs a full-text search over the review index
func (h *AdminHandler) SearchConflicts(c *gin.Context) {
	if h.searcher == nil {
		respondError(c, fmt.Errorf("%w: conflict search is disabled", ErrUnavailable))
		return
	}

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil {
		limit = 20
	}
	offset, err := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	if err != nil {
		offset = 0
	}

	params := search.FilterParams{
		Query:      c.Query("q"),
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
		EditedBy:   c.Query("edited_by"),
		SortBy:     c.Query("sort_by"),
		Limit:      limit,
		Offset:     offset,
	}
	for _, name := range c.QueryArray("field_name") {
		for _, part := range strings.Split(name, ",") {
			if part = strings.TrimSpace(part); part != "" {
				params.FieldNames = append(params.FieldNames, part)
			}
		}
	}

	result, err := h.searcher.Search(params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ConflictTrail returns every scraped value that flagged an edit
func (h *AdminHandler) ConflictTrail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, &edits.ValidationError{Field: "id", Message: fmt.Sprintf("invalid edit id %q", c.Param("id"))})
		return
	}

	trail, err := h.service.ConflictTrail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"edit_id":      id,
		"observations": trail,
		"count":        len(trail),
	})
}

// Reindex rebuilds the review index immediately
func (h *AdminHandler) Reindex(c *gin.Context) {
	if h.scheduler == nil {
		respondError(c, fmt.Errorf("%w: conflict search is disabled", ErrUnavailable))
		return
	}

	h.logger.Info("admin: manual conflict reindex requested", zap.String("user_id", userID(c)))
	n, err := h.scheduler.RunNow(c.Request.Context())
	if err != nil {
		h.logger.Warn("admin: manual conflict reindex failed", zap.Error(err))
		respondError(c, fmt.Errorf("%w: %v", ErrUnavailable, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Conflict index rebuilt",
		"indexed": n,
	})
}

// SchedulerStatus returns the last index sync summary and the index breaker state
func (h *AdminHandler) SchedulerStatus(c *gin.Context) {
	if h.scheduler == nil {
		respondError(c, fmt.Errorf("%w: scheduler not configured", ErrUnavailable))
		return
	}
	resp := gin.H{"scheduler": h.scheduler.Status()}
	if br, ok := h.searcher.(breakerReporter); ok {
		resp["index"] = br.BreakerStatus()
	}
	c.JSON(http.StatusOK, resp)
}
