package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/meridianbio/batchsight-backend/internal/http/handlers"
	httpMW "github.com/meridianbio/batchsight-backend/internal/http/middleware"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	ServiceName string

	HealthHandler    *httpH.HealthHandler
	RecordHandler    *httpH.RecordHandler
	AlertHandler     *httpH.AlertHandler
	InsightHandler   *httpH.InsightHandler
	ConnectorHandler *httpH.ConnectorHandler
	CatalogHandler   *httpH.CatalogHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestID())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())
	r.Use(otelgin.Middleware(cfg.ServiceName))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Ledger
		if cfg.RecordHandler != nil {
			api.GET("/records", cfg.RecordHandler.ListRecords)
			api.GET("/records/counts", cfg.RecordHandler.Counts)
			api.GET("/records/completeness", cfg.RecordHandler.Completeness)
			api.GET("/records/:id", cfg.RecordHandler.GetRecord)
			api.GET("/records/:id/corrections", cfg.RecordHandler.ListCorrections)
			api.POST("/records/:id/corrections", cfg.RecordHandler.CreateCorrection)
			api.POST("/records/:id/labels", cfg.RecordHandler.ApplyLabels)
			api.POST("/records/labels/bulk", cfg.RecordHandler.BulkApplyLabels)
			api.POST("/refresh", cfg.RecordHandler.Refresh)
		}

		// Alerts
		if cfg.AlertHandler != nil {
			api.GET("/alerts", cfg.AlertHandler.ListAlerts)
			api.GET("/alerts/counts", cfg.AlertHandler.Counts)
		}

		// Insights
		if cfg.InsightHandler != nil {
			api.GET("/insights", cfg.InsightHandler.ListInsights)
			api.GET("/insights/recipes", cfg.InsightHandler.ListRecipes)
			api.POST("/insights/recipes/:id/toggle", cfg.InsightHandler.ToggleRecipe)
		}

		// Instrument connector
		if cfg.ConnectorHandler != nil {
			api.GET("/connector/records", cfg.ConnectorHandler.ListRecords)
			api.GET("/connector/alerts", cfg.ConnectorHandler.ListAlerts)
		}

		// Catalog
		if cfg.CatalogHandler != nil {
			api.GET("/interfaces", cfg.CatalogHandler.ListInterfaces)
			api.GET("/runs", cfg.CatalogHandler.ListRuns)
		}
	}

	return r
}
