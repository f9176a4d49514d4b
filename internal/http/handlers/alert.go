package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/meridianbio/batchsight-backend/internal/http/response"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
	"github.com/meridianbio/batchsight-backend/internal/services"
)

type AlertHandler struct {
	log *logger.Logger
	svc *services.QualityService
}

func NewAlertHandler(log *logger.Logger, svc *services.QualityService) *AlertHandler {
	return &AlertHandler{
		log: log.With("handler", "AlertHandler"),
		svc: svc,
	}
}

// GET /api/alerts
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	alerts := h.svc.Alerts()

	ifaceID := c.Query("interface_id")
	runID := c.Query("run_id")
	if ifaceID != "" || runID != "" {
		filtered := alerts[:0:0]
		for _, a := range alerts {
			if ifaceID != "" && a.InterfaceID != ifaceID {
				continue
			}
			if runID != "" && a.LinkedRunID != runID {
				continue
			}
			filtered = append(filtered, a)
		}
		alerts = filtered
	}

	response.RespondOK(c, gin.H{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

// GET /api/alerts/counts
func (h *AlertHandler) Counts(c *gin.Context) {
	response.RespondOK(c, gin.H{"by_severity": h.svc.AlertCounts()})
}
