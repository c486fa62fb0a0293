package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ouralink/internal/coordinator"
	apperrors "ouralink/internal/errors"
	"ouralink/internal/model"
)

type WellnessHandler struct {
	coordinator *coordinator.Coordinator
}

func NewWellnessHandler(c *coordinator.Coordinator) *WellnessHandler {
	return &WellnessHandler{coordinator: c}
}

func (h *WellnessHandler) GetSnapshot(c *gin.Context) {
	snap := h.coordinator.State()
	c.JSON(http.StatusOK, gin.H{
		"last_update":          formatUpdate(snap.LastUpdate),
		"wellness_phase":       snap.WellnessPhase,
		"circadian":            snap.Circadian,
		"trends":               snap.Trends,
		"insights":             snap.Insights,
		"predictions":          snap.Predictions,
		"rate_limit_remaining": snap.RateLimitRemaining,
		"sleep":                latestSummary(snap),
	})
}

func (h *WellnessHandler) GetSleep(c *gin.Context) {
	snap := h.coordinator.State()

	var latest gin.H
	if sleep := snap.LatestSleep(); sleep != nil {
		latest = gin.H{
			"score":       sleep.Score,
			"quality":     sleep.Quality(),
			"hours_slept": sleep.HoursSlept(),
			"day":         sleep.Day,
		}
	}
	c.JSON(http.StatusOK, gin.H{"latest": latest, "records": snap.Sleep})
}

func (h *WellnessHandler) GetReadiness(c *gin.Context) {
	snap := h.coordinator.State()

	var latest gin.H
	if readiness := snap.LatestReadiness(); readiness != nil {
		latest = gin.H{
			"score":          readiness.Score,
			"level":          readiness.Level(),
			"recommendation": readiness.RecoveryRecommendation(),
			"day":            readiness.Day,
		}
	}
	c.JSON(http.StatusOK, gin.H{"latest": latest, "records": snap.Readiness})
}

func (h *WellnessHandler) GetActivity(c *gin.Context) {
	snap := h.coordinator.State()

	var latest gin.H
	if activity := snap.LatestActivity(); activity != nil {
		latest = gin.H{
			"score":        activity.Score,
			"steps":        activity.Steps,
			"intensity":    activity.IntensityLevel(),
			"active_hours": activity.ActiveHours(),
			"day":          activity.Day,
		}
	}
	c.JSON(http.StatusOK, gin.H{"latest": latest, "records": snap.Activity})
}

func (h *WellnessHandler) GetHeartRate(c *gin.Context) {
	snap := h.coordinator.State()

	var latest gin.H
	if len(snap.HeartRate) > 0 {
		record := snap.HeartRate[0]
		latest = gin.H{
			"resting":     record.Resting,
			"average":     record.Average,
			"variability": record.Variability(),
			"day":         record.Day,
		}
	}
	c.JSON(http.StatusOK, gin.H{"latest": latest, "records": snap.HeartRate})
}

func (h *WellnessHandler) GetStress(c *gin.Context) {
	snap := h.coordinator.State()

	var latest gin.H
	if len(snap.Stress) > 0 {
		record := snap.Stress[0]
		latest = gin.H{
			"score": record.Score,
			"level": record.Level(),
			"day":   record.Day,
		}
	}
	c.JSON(http.StatusOK, gin.H{"latest": latest, "records": snap.Stress})
}

func (h *WellnessHandler) GetWorkouts(c *gin.Context) {
	snap := h.coordinator.State()

	var latest gin.H
	if len(snap.Workouts) > 0 {
		record := snap.Workouts[0]
		latest = gin.H{
			"activity":       record.Activity,
			"duration_hours": record.DurationHours(),
			"intensity":      record.Intensity,
			"day":            record.Day,
		}
	}
	c.JSON(http.StatusOK, gin.H{"latest": latest, "records": snap.Workouts})
}

func (h *WellnessHandler) GetSpO2(c *gin.Context) {
	snap := h.coordinator.State()

	var latest gin.H
	if len(snap.SpO2) > 0 {
		record := snap.SpO2[0]
		latest = gin.H{"percentage": record.Percentage, "day": record.Day}
	}
	c.JSON(http.StatusOK, gin.H{"latest": latest, "records": snap.SpO2})
}

func (h *WellnessHandler) GetTemperature(c *gin.Context) {
	snap := h.coordinator.State()

	var latest gin.H
	if len(snap.Temperature) > 0 {
		record := snap.Temperature[0]
		latest = gin.H{
			"deviation": record.Deviation,
			"trend":     record.Trend,
			"day":       record.Day,
		}
	}
	c.JSON(http.StatusOK, gin.H{"latest": latest, "records": snap.Temperature})
}

func (h *WellnessHandler) GetTrends(c *gin.Context) {
	snap := h.coordinator.State()
	c.JSON(http.StatusOK, gin.H{"trends": snap.Trends})
}

func (h *WellnessHandler) GetCircadian(c *gin.Context) {
	snap := h.coordinator.State()
	c.JSON(http.StatusOK, gin.H{
		"circadian": snap.Circadian,
		"quality":   snap.Circadian.Quality(),
	})
}

func (h *WellnessHandler) GetPhase(c *gin.Context) {
	snap := h.coordinator.State()
	c.JSON(http.StatusOK, gin.H{"wellness_phase": snap.WellnessPhase})
}

func (h *WellnessHandler) GetInsights(c *gin.Context) {
	snap := h.coordinator.State()
	if snap.Insights == nil {
		writeError(c, apperrors.NotFound("insights_disabled", "insights are not enabled"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": snap.Insights})
}

func (h *WellnessHandler) GetPredictions(c *gin.Context) {
	snap := h.coordinator.State()
	if snap.Predictions == nil {
		writeError(c, apperrors.NotFound("predictions_unavailable", "predictions are not enabled or not yet computed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": snap.Predictions})
}

func latestSummary(snap *model.Snapshot) gin.H {
	summary := gin.H{}
	if sleep := snap.LatestSleep(); sleep != nil {
		summary["score"] = sleep.Score
		summary["quality"] = sleep.Quality()
		summary["hours_slept"] = sleep.HoursSlept()
	}
	return summary
}

func formatUpdate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
