package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/meridianbio/batchsight-backend/internal/http/response"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
	"github.com/meridianbio/batchsight-backend/internal/services"
)

type ConnectorHandler struct {
	log *logger.Logger
	svc *services.QualityService
}

func NewConnectorHandler(log *logger.Logger, svc *services.QualityService) *ConnectorHandler {
	return &ConnectorHandler{
		log: log.With("handler", "ConnectorHandler"),
		svc: svc,
	}
}

// GET /api/connector/records
func (h *ConnectorHandler) ListRecords(c *gin.Context) {
	records := h.svc.ConnectorRecords()
	response.RespondOK(c, gin.H{
		"records": records,
		"total":   len(records),
	})
}

// GET /api/connector/alerts
func (h *ConnectorHandler) ListAlerts(c *gin.Context) {
	alerts := h.svc.ConnectorAlerts()
	open := 0
	for _, a := range alerts {
		if !a.Resolved {
			open++
		}
	}
	response.RespondOK(c, gin.H{
		"alerts": alerts,
		"total":  len(alerts),
		"open":   open,
	})
}
