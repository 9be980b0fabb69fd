package handlers

import (
	"github.com/gin-gonic/gin"

	"insightflow/api/logger"
	"insightflow/api/middleware"
	"insightflow/api/observability"
)

type RouterConfig struct {
	Tracking *TrackingHandlers
	Metrics  *MetricsHandlers
	Admin    *AdminHandlers
	Insights *InsightHandlers
	System   *SystemHandlers

	AdminAuth      middleware.AdminAuth
	AllowedOrigins []string
	Observability  *observability.Metrics
	Log            *logger.Logger
}

// NewRouter mounts every endpoint under /api, with SDK ingestion under
// /api/track and prometheus exposition at /metrics.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(cfg.Log, cfg.Observability))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/metrics", cfg.System.Prometheus)

	api := r.Group("/api")
	api.GET("/health", cfg.System.Health)
	api.GET("/stats/performance", cfg.System.Performance)

	track := api.Group("/track")
	{
		track.POST("/session/start", cfg.Tracking.StartSession)
		track.POST("/session/end", cfg.Tracking.EndSession)
		track.POST("/activity", cfg.Tracking.RecordActivity)
		track.PATCH("/activity/:activityId/duration", cfg.Tracking.UpdateActivityDuration)
		track.POST("/event", cfg.Tracking.RecordEvent)
		track.POST("/feedback", cfg.Tracking.RecordFeedback)
	}

	api.GET("/journey/metrics", cfg.Metrics.GetJourneyMetrics)
	api.GET("/journey/sessions", cfg.Metrics.GetSessionTimeline)
	api.GET("/journey/flow", cfg.Metrics.GetJourneyFlow)
	api.GET("/conversion/metrics", cfg.Metrics.GetConversionMetrics)
	api.GET("/conversion/funnel", cfg.Metrics.GetFunnel)
	api.GET("/recommendations", cfg.Metrics.GetRecommendations)

	ai := api.Group("/ai")
	{
		ai.GET("/questions", cfg.Insights.ListQuestions)
		ai.POST("/insight", cfg.Insights.GetInsight)
	}

	admin := api.Group("", middleware.AdminRequired(cfg.AdminAuth, cfg.Log))
	{
		admin.POST("/cron/detect-churn", cfg.Admin.DetectChurn)
		admin.POST("/cron/detect-dropoffs", cfg.Admin.DetectDropoffs)
		admin.POST("/cron/reconcile-funnel", cfg.Admin.ReconcileFunnel)
		admin.POST("/cache/clear", cfg.Admin.ClearCache)
	}

	return r
}
