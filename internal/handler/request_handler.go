package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyconnect/studyconnect-api/internal/models"
	appErrors "github.com/studyconnect/studyconnect-api/pkg/errors"
	"github.com/studyconnect/studyconnect-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, actor *models.JWTClaims, input models.CreateRequestInput) (*models.StudentRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error)
	Mine(ctx context.Context, actor *models.JWTClaims, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error)
	Assigned(ctx context.Context, actor *models.JWTClaims, tutorID string, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error)
	Available(ctx context.Context, actor *models.JWTClaims, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error)
	BySubject(ctx context.Context, subject models.Subject, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.StudentRequest, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, input models.UpdateRequestInput) (*models.StudentRequest, error)
	UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, input models.UpdateStatusInput) (*models.StudentRequest, error)
	AssignTutor(ctx context.Context, actor *models.JWTClaims, id string, input models.AssignTutorInput) (*models.StudentRequest, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// RequestHandler exposes the student request lifecycle endpoints.
type RequestHandler struct {
	requests requestService
}

// NewRequestHandler constructs RequestHandler.
func NewRequestHandler(requests requestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

func requestFilterFromQuery(c *gin.Context) models.RequestFilter {
	var filter models.RequestFilter
	filter.Status = models.RequestStatus(c.Query("status"))
	filter.Subject = models.Subject(c.Query("subject"))
	filter.GradeLevel = models.GradeLevel(c.Query("gradeLevel"))
	filter.Priority = models.Priority(c.Query("priority"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		filter.Limit = limit
	}
	return filter
}

// Create godoc
// @Summary Create a tutoring request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateRequestInput true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input models.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.requests.Create(c.Request.Context(), claims, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "request created", request)
}

// List godoc
// @Summary List tutoring requests
// @Tags Requests
// @Produce json
// @Param status query string false "Filter by status"
// @Param subject query string false "Filter by subject"
// @Param gradeLevel query string false "Filter by grade level"
// @Param priority query string false "Filter by priority"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	requests, pagination, err := h.requests.List(c.Request.Context(), requestFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Mine godoc
// @Summary List the caller's own requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /requests/my-requests [get]
func (h *RequestHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, pagination, err := h.requests.Mine(c.Request.Context(), claims, requestFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Assigned godoc
// @Summary List assigned requests for tutors
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param tutorId query string false "Filter by tutor (admin only)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests/tutor/assigned [get]
func (h *RequestHandler) Assigned(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, pagination, err := h.requests.Assigned(c.Request.Context(), claims, c.Query("tutorId"), requestFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Available godoc
// @Summary List open unassigned requests for tutors
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param subject query string false "Filter by subject"
// @Param gradeLevel query string false "Filter by grade level"
// @Param priority query string false "Filter by priority"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests/tutor/available [get]
func (h *RequestHandler) Available(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, pagination, err := h.requests.Available(c.Request.Context(), claims, requestFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// BySubject godoc
// @Summary List open requests for a subject
// @Tags Requests
// @Produce json
// @Param subject path string true "Subject"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests/subject/{subject} [get]
func (h *RequestHandler) BySubject(c *gin.Context) {
	subject := models.Subject(c.Param("subject"))
	requests, pagination, err := h.requests.BySubject(c.Request.Context(), subject, requestFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get a request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	request, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Update godoc
// @Summary Update a request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body models.UpdateRequestInput true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [put]
func (h *RequestHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input models.UpdateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.requests.Update(c.Request.Context(), claims, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "request updated", request)
}

// UpdateStatus godoc
// @Summary Update a request's lifecycle status
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body models.UpdateStatusInput true "New status"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/status [put]
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input models.UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.requests.UpdateStatus(c.Request.Context(), claims, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "request status updated", request)
}

// AssignTutor godoc
// @Summary Assign a tutor to an open request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body models.AssignTutorInput true "Tutor to assign"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/assign-tutor [put]
func (h *RequestHandler) AssignTutor(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var input models.AssignTutorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.requests.AssignTutor(c.Request.Context(), claims, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "tutor assigned", request)
}

// Delete godoc
// @Summary Delete a request
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [delete]
func (h *RequestHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.requests.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "request deleted", nil)
}
