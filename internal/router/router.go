package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ouralink/internal/coordinator"
	"ouralink/internal/handler"
	"ouralink/internal/middleware"
	"ouralink/internal/service"
)

const degradedFailureStreak = 3

func New(
	authService *service.AuthService,
	coord *coordinator.Coordinator,
	authHandler *handler.AuthHandler,
	wellnessHandler *handler.WellnessHandler,
	adminHandler *handler.AdminHandler,
	webhookHandler *handler.WebhookHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		failures := coord.ConsecutiveFailures()
		status := "ok"
		code := http.StatusOK
		if failures >= degradedFailureStreak {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "consecutive_failures": failures})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/token", authHandler.Token)

	wellness := api.Group("/wellness")
	wellness.GET("/snapshot", wellnessHandler.GetSnapshot)
	wellness.GET("/sleep", wellnessHandler.GetSleep)
	wellness.GET("/readiness", wellnessHandler.GetReadiness)
	wellness.GET("/activity", wellnessHandler.GetActivity)
	wellness.GET("/heart-rate", wellnessHandler.GetHeartRate)
	wellness.GET("/stress", wellnessHandler.GetStress)
	wellness.GET("/workouts", wellnessHandler.GetWorkouts)
	wellness.GET("/spo2", wellnessHandler.GetSpO2)
	wellness.GET("/temperature", wellnessHandler.GetTemperature)
	wellness.GET("/trends", wellnessHandler.GetTrends)
	wellness.GET("/circadian", wellnessHandler.GetCircadian)
	wellness.GET("/phase", wellnessHandler.GetPhase)
	wellness.GET("/insights", wellnessHandler.GetInsights)
	wellness.GET("/predictions", wellnessHandler.GetPredictions)

	admin := api.Group("/admin")
	admin.Use(middleware.Auth(authService))
	admin.POST("/refresh", adminHandler.Refresh)
	admin.POST("/cache/clear", adminHandler.ClearCache)
	admin.GET("/history", adminHandler.ListHistory)
	admin.GET("/export", adminHandler.Export)

	if webhookHandler != nil {
		api.POST("/webhook/:id", webhookHandler.Receive)
	}

	return engine
}
