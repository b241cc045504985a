package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unireg-api/internal/models"
	"github.com/noah-isme/unireg-api/internal/service"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
	"github.com/noah-isme/unireg-api/pkg/response"
)

type registrationService interface {
	List(ctx context.Context, actor service.Actor, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.RegistrationDetail, error)
	Create(ctx context.Context, studentID string, req service.CreateRegistrationRequest) (*models.RegistrationDetail, *models.SwitchCandidate, error)
	Approve(ctx context.Context, actor service.Actor, id string) (*models.RegistrationDetail, error)
	Reject(ctx context.Context, actor service.Actor, id string, req service.RejectRegistrationRequest) (*models.RegistrationDetail, error)
	Withdraw(ctx context.Context, actor service.Actor, id string) error
	Switch(ctx context.Context, actor service.Actor, id string, req service.SwitchRegistrationRequest) (*models.RegistrationDetail, error)
	Grade(ctx context.Context, actor service.Actor, id string, req service.GradeRegistrationRequest) (*models.RegistrationDetail, error)
}

// RegistrationHandler exposes registration workflow endpoints.
type RegistrationHandler struct {
	registrations registrationService
	metrics       *service.MetricsService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService, metrics *service.MetricsService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, metrics: metrics}
}

// List godoc
// @Summary List registrations
// @Tags Registrations
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param semesterId query string false "Filter by semester"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	var filter models.RegistrationFilter
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	filter.SemesterID = c.Query("semesterId")
	if status := c.Query("status"); status != "" {
		filter.Status = models.RegistrationStatus(strings.ToUpper(status))
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	registrations, pagination, err := h.registrations.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, pagination)
}

// Get godoc
// @Summary Get one registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	registration, err := h.registrations.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// Create godoc
// @Summary Register for a course section
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.CreateRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Conflict, possibly with a switch candidate"
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req service.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	actor := actorFromContext(c)
	registration, candidate, err := h.registrations.Create(c.Request.Context(), actor.ID, req)
	h.observe("create", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	if candidate != nil {
		response.JSON(c, http.StatusConflict, candidate, nil, map[string]interface{}{
			"hint": "a non-approved registration for this subject exists; use the switch endpoint",
		})
		return
	}
	response.Created(c, registration)
}

// Approve godoc
// @Summary Approve a pending registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/approve [put]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	registration, err := h.registrations.Approve(c.Request.Context(), actorFromContext(c), c.Param("id"))
	h.observe("approve", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// Reject godoc
// @Summary Reject a pending registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.RejectRegistrationRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/reject [put]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	var req service.RejectRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	registration, err := h.registrations.Reject(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	h.observe("reject", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// Withdraw godoc
// @Summary Withdraw a registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 204
// @Router /registrations/{id} [delete]
func (h *RegistrationHandler) Withdraw(c *gin.Context) {
	err := h.registrations.Withdraw(c.Request.Context(), actorFromContext(c), c.Param("id"))
	h.observe("withdraw", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Switch godoc
// @Summary Switch to another section of the same subject
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.SwitchRegistrationRequest true "Switch payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/switch [post]
func (h *RegistrationHandler) Switch(c *gin.Context) {
	var req service.SwitchRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	registration, err := h.registrations.Switch(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	h.observe("switch", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// Grade godoc
// @Summary Record grading for a registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.GradeRegistrationRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/grade [put]
func (h *RegistrationHandler) Grade(c *gin.Context) {
	var req service.GradeRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	registration, err := h.registrations.Grade(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	h.observe("grade", err)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

func (h *RegistrationHandler) observe(transition string, err error) {
	if h.metrics != nil {
		h.metrics.ObserveTransition(transition, err == nil)
	}
}
