package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meridianbio/batchsight-backend/internal/domain"
	"github.com/meridianbio/batchsight-backend/internal/http/response"
	pkgerrors "github.com/meridianbio/batchsight-backend/internal/pkg/errors"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
	"github.com/meridianbio/batchsight-backend/internal/services"
)

type InsightHandler struct {
	log *logger.Logger
	svc *services.QualityService
}

func NewInsightHandler(log *logger.Logger, svc *services.QualityService) *InsightHandler {
	return &InsightHandler{
		log: log.With("handler", "InsightHandler"),
		svc: svc,
	}
}

// GET /api/insights
func (h *InsightHandler) ListInsights(c *gin.Context) {
	insights := h.svc.Insights()
	bySeverity := make(map[domain.Severity]int, 4)
	for _, ins := range insights {
		bySeverity[ins.Severity]++
	}
	response.RespondOK(c, gin.H{
		"insights":    insights,
		"total":       len(insights),
		"by_severity": bySeverity,
	})
}

// GET /api/insights/recipes
func (h *InsightHandler) ListRecipes(c *gin.Context) {
	response.RespondOK(c, gin.H{"recipes": h.svc.Recipes()})
}

// POST /api/insights/recipes/:id/toggle
func (h *InsightHandler) ToggleRecipe(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.ToggleRecipe(id); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "recipe_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "toggle_failed", err)
		return
	}
	h.log.Info("recipe toggled", "recipe_id", id)
	response.RespondOK(c, gin.H{"recipes": h.svc.Recipes()})
}
