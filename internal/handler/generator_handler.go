package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/service"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
	"github.com/acadforge/timetable-api/pkg/response"
)

// GeneratorHandler exposes timetable generation endpoints.
type GeneratorHandler struct {
	service *service.GeneratorService
}

// NewGeneratorHandler constructs handler.
func NewGeneratorHandler(svc *service.GeneratorService) *GeneratorHandler {
	return &GeneratorHandler{service: svc}
}

// Generate godoc
// @Summary Run the assignment search and hold the result as a proposal
// @Tags Generator
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *GeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Commit godoc
// @Summary Persist a held proposal as schedule entries
// @Tags Generator
// @Accept json
// @Produce json
// @Param payload body dto.CommitProposalRequest true "Commit payload"
// @Success 201 {object} response.Envelope
// @Router /schedules/commit [post]
func (h *GeneratorHandler) Commit(c *gin.Context) {
	var req dto.CommitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entries, err := h.service.Commit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entries)
}

// DetectConflicts godoc
// @Summary Validate a candidate assignment without persisting it
// @Tags Generator
// @Accept json
// @Produce json
// @Param payload body dto.DetectConflictsRequest true "Candidate payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/conflicts [post]
func (h *GeneratorHandler) DetectConflicts(c *gin.Context) {
	var req dto.DetectConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.DetectConflicts(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
