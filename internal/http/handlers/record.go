package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meridianbio/batchsight-backend/internal/http/response"
	pkgerrors "github.com/meridianbio/batchsight-backend/internal/pkg/errors"
	"github.com/meridianbio/batchsight-backend/internal/platform/logger"
	"github.com/meridianbio/batchsight-backend/internal/services"
)

type RecordHandler struct {
	log *logger.Logger
	svc *services.QualityService
}

func NewRecordHandler(log *logger.Logger, svc *services.QualityService) *RecordHandler {
	return &RecordHandler{
		log: log.With("handler", "RecordHandler"),
		svc: svc,
	}
}

// GET /api/records
func (h *RecordHandler) ListRecords(c *gin.Context) {
	flagged, _ := strconv.ParseBool(c.Query("flagged"))
	filter := services.RecordFilter{
		InterfaceID: c.Query("interface_id"),
		RunID:       c.Query("run_id"),
		DataType:    c.Query("data_type"),
		FlaggedOnly: flagged,
	}

	records := h.svc.Records(filter)
	response.RespondOK(c, gin.H{
		"records": records,
		"total":   len(records),
	})
}

// GET /api/records/counts
func (h *RecordHandler) Counts(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"total":        h.svc.RecordCount(),
		"by_interface": h.svc.CountsByInterface(),
		"by_type":      h.svc.CountsByType(),
	})
}

// GET /api/records/completeness
func (h *RecordHandler) Completeness(c *gin.Context) {
	response.RespondOK(c, gin.H{"interfaces": h.svc.Completeness()})
}

// GET /api/records/:id
func (h *RecordHandler) GetRecord(c *gin.Context) {
	record, err := h.svc.RecordByID(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "record_not_found", err)
		return
	}
	response.RespondOK(c, record)
}

// GET /api/records/:id/corrections
func (h *RecordHandler) ListCorrections(c *gin.Context) {
	corrections, err := h.svc.CorrectionsFor(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "record_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{
		"corrections": corrections,
		"total":       len(corrections),
	})
}

type createCorrectionRequest struct {
	Summary string `json:"summary"`
	Actor   string `json:"actor"`
}

// POST /api/records/:id/corrections
func (h *RecordHandler) CreateCorrection(c *gin.Context) {
	var req createCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	correction, err := h.svc.CreateCorrection(c.Param("id"), req.Summary, req.Actor)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrNotFound):
			response.RespondError(c, http.StatusNotFound, "record_not_found", err)
		case errors.Is(err, pkgerrors.ErrInvalidArgument):
			response.RespondError(c, http.StatusBadRequest, "invalid_correction", err)
		default:
			response.RespondError(c, http.StatusInternalServerError, "create_correction_failed", err)
		}
		return
	}

	h.log.Info("correction created", "original_id", c.Param("id"), "correction_id", correction.RecordID)
	c.JSON(http.StatusCreated, correction)
}

type applyLabelsRequest struct {
	Labels map[string]string `json:"labels"`
}

// POST /api/records/:id/labels
func (h *RecordHandler) ApplyLabels(c *gin.Context) {
	var req applyLabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	record, err := h.svc.ApplyLabels(c.Param("id"), req.Labels)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrNotFound):
			response.RespondError(c, http.StatusNotFound, "record_not_found", err)
		case errors.Is(err, pkgerrors.ErrInvalidArgument):
			response.RespondError(c, http.StatusBadRequest, "invalid_labels", err)
		default:
			response.RespondError(c, http.StatusInternalServerError, "apply_labels_failed", err)
		}
		return
	}
	response.RespondOK(c, record)
}

type bulkLabelsRequest struct {
	InterfaceID string            `json:"interface_id"`
	Labels      map[string]string `json:"labels"`
}

// POST /api/records/labels/bulk
func (h *RecordHandler) BulkApplyLabels(c *gin.Context) {
	var req bulkLabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.InterfaceID == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("interface_id is required"))
		return
	}

	attempted, err := h.svc.BulkApplyLabels(req.InterfaceID, req.Labels)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_labels", err)
		return
	}
	response.RespondOK(c, gin.H{"attempted": attempted})
}

// POST /api/refresh
func (h *RecordHandler) Refresh(c *gin.Context) {
	result, err := h.svc.Refresh()
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "refresh_failed", err)
		return
	}
	h.log.Info("refresh complete", "total", result.Total, "newly_added", result.NewlyAdded)
	response.RespondOK(c, result)
}
