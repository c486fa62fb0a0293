package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ouralink/internal/coordinator"
	apperrors "ouralink/internal/errors"
	"ouralink/internal/history"
	"ouralink/internal/model"
	"ouralink/internal/ouraapi"
)

const (
	defaultExportDays = 30
	maxExportDays     = 365
)

type CacheClearer interface {
	ClearCache()
}

type AdminHandler struct {
	coordinator *coordinator.Coordinator
	cache       CacheClearer
	repo        *history.Repository
}

func NewAdminHandler(c *coordinator.Coordinator, cache CacheClearer, repo *history.Repository) *AdminHandler {
	return &AdminHandler{coordinator: c, cache: cache, repo: repo}
}

// Refresh forces a full poll cycle, or a single category when ?category= is
// given.
func (h *AdminHandler) Refresh(c *gin.Context) {
	rawCategory := c.Query("category")
	if rawCategory != "" {
		category := model.Category(rawCategory)
		if !validCategory(category) {
			writeError(c, apperrors.BadRequest("invalid_category", "unknown category "+rawCategory))
			return
		}
		if err := h.coordinator.RefreshCategory(c.Request.Context(), category); err != nil {
			writeRefreshError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"refreshed": category})
		return
	}

	snap, err := h.coordinator.Refresh(c.Request.Context())
	if err != nil {
		writeRefreshError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refreshed":            "all",
		"last_update":          formatUpdate(snap.LastUpdate),
		"rate_limit_remaining": snap.RateLimitRemaining,
	})
}

func (h *AdminHandler) ClearCache(c *gin.Context) {
	h.cache.ClearCache()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (h *AdminHandler) ListHistory(c *gin.Context) {
	days, apiErr := exportDays(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	rows, err := h.repo.ListDays(c.Request.Context(), days)
	if err != nil {
		writeError(c, apperrors.Internal("failed to query history"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": rows})
}

// Export streams stored history as JSON (default) or CSV.
func (h *AdminHandler) Export(c *gin.Context) {
	days, apiErr := exportDays(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	rows, err := h.repo.ListDays(c.Request.Context(), days)
	if err != nil {
		writeError(c, apperrors.Internal("failed to query history"))
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		c.Header("Content-Type", "application/json")
		c.Header("Content-Disposition", `attachment; filename="wellness_export.json"`)
		if err := history.WriteJSON(c.Writer, rows); err != nil {
			writeError(c, apperrors.Internal("failed to write export"))
		}
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="wellness_export.csv"`)
		if err := history.WriteCSV(c.Writer, rows); err != nil {
			writeError(c, apperrors.Internal("failed to write export"))
		}
	default:
		writeError(c, apperrors.BadRequest("invalid_format", "format must be json or csv"))
	}
}

func exportDays(c *gin.Context) (int, *apperrors.APIError) {
	days := defaultExportDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, apperrors.BadRequest("invalid_days", "days must be a positive integer")
		}
		days = parsed
	}
	if days > maxExportDays {
		days = maxExportDays
	}
	return days, nil
}

func validCategory(category model.Category) bool {
	for _, known := range model.Categories() {
		if category == known {
			return true
		}
	}
	return false
}

func writeRefreshError(c *gin.Context, err error) {
	if ouraapi.IsAuthError(err) {
		writeError(c, apperrors.BadGateway("upstream_auth_failed", err.Error()))
		return
	}
	writeError(c, apperrors.BadGateway("upstream_error", err.Error()))
}
