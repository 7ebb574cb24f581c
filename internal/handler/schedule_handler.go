package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/middleware"
	"github.com/acadforge/timetable-api/internal/models"
	"github.com/acadforge/timetable-api/internal/service"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
	"github.com/acadforge/timetable-api/pkg/response"
)

// ScheduleHandler manages schedule entry endpoints.
type ScheduleHandler struct {
	service *service.ScheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List schedule entries
// @Tags Schedules
// @Produce json
// @Param semester query string false "Filter by semester"
// @Param academicYear query string false "Filter by academic year"
// @Param subjectId query string false "Filter by subject"
// @Param facultyId query string false "Filter by faculty"
// @Param classroomId query string false "Filter by classroom"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var filter models.ScheduleFilter
	filter.Semester = c.Query("semester")
	filter.AcademicYear = c.Query("academicYear")
	filter.SubjectID = c.Query("subjectId")
	filter.FacultyID = c.Query("facultyId")
	filter.ClassroomID = c.Query("classroomId")
	if status := strings.ToUpper(c.Query("status")); status != "" {
		filter.Status = models.EntryStatus(status)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	entries, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Timetable godoc
// @Summary Published timetable of a term
// @Tags Schedules
// @Produce json
// @Param semester query string true "Semester"
// @Param academicYear query string true "Academic year"
// @Param facultyId query string false "Restrict to one faculty member"
// @Param classroomId query string false "Restrict to one classroom"
// @Success 200 {object} response.Envelope
// @Router /schedules/timetable [get]
func (h *ScheduleHandler) Timetable(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	entries, hit, err := h.service.Timetable(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, entries, nil)
}

// Get godoc
// @Summary Get schedule entry by ID
// @Tags Schedules
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Create godoc
// @Summary Create a manual draft entry
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.CreateScheduleEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req dto.CreateScheduleEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Patch a draft entry
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateScheduleEntryRequest true "Entry payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req dto.UpdateScheduleEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Publish godoc
// @Summary Publish a batch of draft entries
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.PublishScheduleRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/publish [post]
func (h *ScheduleHandler) Publish(c *gin.Context) {
	var req dto.PublishScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entries, err := h.service.Publish(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ArchiveTerm godoc
// @Summary Archive every entry of a term
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.ArchiveTermRequest true "Term payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/archive [post]
func (h *ScheduleHandler) ArchiveTerm(c *gin.Context) {
	var req dto.ArchiveTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	affected, err := h.service.ArchiveTerm(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"archived": affected}, nil)
}

// Delete godoc
// @Summary Delete a draft entry
// @Tags Schedules
// @Produce json
// @Param id path string true "Entry ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
