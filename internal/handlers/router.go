package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"apartment-locator/internal/ratelimit"
)

// Routes bundles the handlers mounted by RegisterRoutes
type Routes struct {
	Edits   *EditHandler
	Admin   *AdminHandler
	Clients *ClientHandler
	Limiter *ratelimit.RateLimiter
}

// RegisterRoutes mounts the API on r. Writes require X-User-ID.
func RegisterRoutes(r *gin.Engine, h Routes) {
	r.GET("/health", healthCheck)

	api := r.Group("/api")

	edits := api.Group("/edits")
	{
		edits.POST("", RequireUser(), h.Edits.CreateEdit)
		edits.POST("/overlay", h.Edits.Overlay)
		edits.POST("/resolve", RequireUser(), h.Edits.ResolveConflict)
		edits.GET("/history", h.Edits.History)
	}

	refresh := []gin.HandlerFunc{RequireUser()}
	if h.Limiter != nil {
		refresh = append(refresh, h.Limiter.Middleware(ratelimit.ByUserOrIP))
	}
	refresh = append(refresh, h.Edits.Refresh)
	api.POST("/refresh", refresh...)
	api.GET("/refresh/stats", h.Edits.RefreshStats)

	if h.Clients != nil {
		api.POST("/clients/import", RequireUser(), h.Clients.Import)
	}

	admin := api.Group("/admin")
	{
		admin.GET("/conflicts", h.Admin.ListConflicts)
		admin.GET("/conflicts/search", h.Admin.SearchConflicts)
		admin.GET("/conflicts/:id/trail", h.Admin.ConflictTrail)
		admin.POST("/conflicts/reindex", RequireUser(), h.Admin.Reindex)
		admin.GET("/scheduler/status", h.Admin.SchedulerStatus)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}
