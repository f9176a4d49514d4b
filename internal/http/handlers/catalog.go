package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/meridianbio/batchsight-backend/internal/http/response"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
	"github.com/meridianbio/batchsight-backend/internal/services"
)

type CatalogHandler struct {
	log *logger.Logger
	svc *services.QualityService
}

func NewCatalogHandler(log *logger.Logger, svc *services.QualityService) *CatalogHandler {
	return &CatalogHandler{
		log: log.With("handler", "CatalogHandler"),
		svc: svc,
	}
}

// GET /api/interfaces
func (h *CatalogHandler) ListInterfaces(c *gin.Context) {
	response.RespondOK(c, gin.H{"interfaces": h.svc.Interfaces()})
}

// GET /api/runs
func (h *CatalogHandler) ListRuns(c *gin.Context) {
	response.RespondOK(c, gin.H{"runs": h.svc.Runs()})
}
