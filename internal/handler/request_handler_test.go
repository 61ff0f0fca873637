package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyconnect/studyconnect-api/internal/middleware"
	"github.com/studyconnect/studyconnect-api/internal/models"
	appErrors "github.com/studyconnect/studyconnect-api/pkg/errors"
)

type requestServiceMock struct {
	createResp *models.StudentRequest
	createErr  error
	listResp   []models.StudentRequest
	assignResp *models.StudentRequest
	assignErr  error
	statusResp *models.StudentRequest
	statusErr  error

	lastFilter  models.RequestFilter
	lastTutorID string
	lastInput   interface{}

	createCalled bool
	assignCalled bool
	statusCalled bool
}

func (m *requestServiceMock) Create(_ context.Context, _ *models.JWTClaims, input models.CreateRequestInput) (*models.StudentRequest, error) {
	m.createCalled = true
	m.lastInput = input
	return m.createResp, m.createErr
}

func (m *requestServiceMock) List(_ context.Context, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, models.NewPagination(filter.Page, filter.Limit, len(m.listResp)), nil
}

func (m *requestServiceMock) Mine(_ context.Context, _ *models.JWTClaims, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, models.NewPagination(filter.Page, filter.Limit, len(m.listResp)), nil
}

func (m *requestServiceMock) Assigned(_ context.Context, _ *models.JWTClaims, tutorID string, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	m.lastTutorID = tutorID
	m.lastFilter = filter
	return m.listResp, models.NewPagination(filter.Page, filter.Limit, len(m.listResp)), nil
}

func (m *requestServiceMock) Available(_ context.Context, _ *models.JWTClaims, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, models.NewPagination(filter.Page, filter.Limit, len(m.listResp)), nil
}

func (m *requestServiceMock) BySubject(_ context.Context, subject models.Subject, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	filter.Subject = subject
	m.lastFilter = filter
	return m.listResp, models.NewPagination(filter.Page, filter.Limit, len(m.listResp)), nil
}

func (m *requestServiceMock) Get(_ context.Context, id string) (*models.StudentRequest, error) {
	for i := range m.listResp {
		if m.listResp[i].ID == id {
			return &m.listResp[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
}

func (m *requestServiceMock) Update(_ context.Context, _ *models.JWTClaims, _ string, input models.UpdateRequestInput) (*models.StudentRequest, error) {
	m.lastInput = input
	return m.createResp, m.createErr
}

func (m *requestServiceMock) UpdateStatus(_ context.Context, _ *models.JWTClaims, _ string, input models.UpdateStatusInput) (*models.StudentRequest, error) {
	m.statusCalled = true
	m.lastInput = input
	return m.statusResp, m.statusErr
}

func (m *requestServiceMock) AssignTutor(_ context.Context, _ *models.JWTClaims, _ string, input models.AssignTutorInput) (*models.StudentRequest, error) {
	m.assignCalled = true
	m.lastInput = input
	return m.assignResp, m.assignErr
}

func (m *requestServiceMock) Delete(_ context.Context, _ *models.JWTClaims, _ string) error {
	return nil
}

func testContext(t *testing.T, method, target string, body []byte, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestRequestHandlerCreate(t *testing.T) {
	mockSvc := &requestServiceMock{
		createResp: &models.StudentRequest{ID: "req-1", Status: models.StatusOpen},
	}
	handler := NewRequestHandler(mockSvc)

	payload, _ := json.Marshal(models.CreateRequestInput{
		Subject:     models.SubjectMathematics,
		Description: "Help with calculus",
		GradeLevel:  "Grade 11",
	})
	c, w := testContext(t, http.MethodPost, "/requests", payload, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
	assert.Contains(t, w.Body.String(), "request created")
}

func TestRequestHandlerCreateUnauthenticated(t *testing.T) {
	handler := NewRequestHandler(&requestServiceMock{})

	c, w := testContext(t, http.MethodPost, "/requests", []byte(`{}`), nil)
	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestHandlerCreateInvalidBody(t *testing.T) {
	mockSvc := &requestServiceMock{}
	handler := NewRequestHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/requests", []byte(`{"subject":`), &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.createCalled)
}

func TestRequestHandlerListFilters(t *testing.T) {
	mockSvc := &requestServiceMock{}
	handler := NewRequestHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/requests?status=open&subject=Mathematics&page=2&limit=5", nil, nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusOpen, mockSvc.lastFilter.Status)
	assert.Equal(t, models.SubjectMathematics, mockSvc.lastFilter.Subject)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 5, mockSvc.lastFilter.Limit)
}

func TestRequestHandlerAssignedPassesTutorID(t *testing.T) {
	mockSvc := &requestServiceMock{}
	handler := NewRequestHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/requests/tutor/assigned?tutorId=t9", nil, &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	handler.Assigned(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t9", mockSvc.lastTutorID)
}

func TestRequestHandlerUpdateStatusServiceError(t *testing.T) {
	mockSvc := &requestServiceMock{
		statusErr: appErrors.Clone(appErrors.ErrConflict, "cannot move request from completed to open"),
	}
	handler := NewRequestHandler(mockSvc)

	payload, _ := json.Marshal(models.UpdateStatusInput{Status: models.StatusOpen})
	c, w := testContext(t, http.MethodPut, "/requests/req-1/status", payload, &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, mockSvc.statusCalled)
}

func TestRequestHandlerAssignTutorForbidden(t *testing.T) {
	mockSvc := &requestServiceMock{
		assignErr: appErrors.Clone(appErrors.ErrForbidden, "only admins can assign tutors (role: tutor)"),
	}
	handler := NewRequestHandler(mockSvc)

	payload, _ := json.Marshal(models.AssignTutorInput{TutorID: "t1"})
	c, w := testContext(t, http.MethodPut, "/requests/req-1/assign-tutor", payload, &models.JWTClaims{UserID: "t2", Role: models.RoleTutor})
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.AssignTutor(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, mockSvc.assignCalled)
}
