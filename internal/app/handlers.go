package app

import (
	"github.com/gin-gonic/gin"

	app_http "github.com/meridianbio/batchsight-backend/internal/http"
	httpH "github.com/meridianbio/batchsight-backend/internal/http/handlers"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
	"github.com/meridianbio/batchsight-backend/internal/services"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Record    *httpH.RecordHandler
	Alert     *httpH.AlertHandler
	Insight   *httpH.InsightHandler
	Connector *httpH.ConnectorHandler
	Catalog   *httpH.CatalogHandler
}

func wireHandlers(log *logger.Logger, quality *services.QualityService) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(),
		Record:    httpH.NewRecordHandler(log, quality),
		Alert:     httpH.NewAlertHandler(log, quality),
		Insight:   httpH.NewInsightHandler(log, quality),
		Connector: httpH.NewConnectorHandler(log, quality),
		Catalog:   httpH.NewCatalogHandler(log, quality),
	}
}

func wireRouter(log *logger.Logger, handlers Handlers) *gin.Engine {
	return app_http.NewRouter(app_http.RouterConfig{
		Log:              log,
		ServiceName:      "batchsight-backend",
		HealthHandler:    handlers.Health,
		RecordHandler:    handlers.Record,
		AlertHandler:     handlers.Alert,
		InsightHandler:   handlers.Insight,
		ConnectorHandler: handlers.Connector,
		CatalogHandler:   handlers.Catalog,
	})
}
