package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyconnect/studyconnect-api/internal/events"
	"github.com/studyconnect/studyconnect-api/internal/models"
	appErrors "github.com/studyconnect/studyconnect-api/pkg/errors"
)

type mockRequestRepo struct {
	requests   map[string]models.StudentRequest
	students   map[string]models.UserRef
	lastFilter models.RequestFilter
	listTotal  int
	failAssign bool
}

func (m *mockRequestRepo) Create(ctx context.Context, req *models.StudentRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]models.StudentRequest)
	}
	if req.ID == "" {
		req.ID = "req-generated"
	}
	m.requests[req.ID] = *req
	return nil
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.StudentRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if ref, ok := m.students[req.StudentID]; ok {
		req.Student = &ref
	}
	return &req, nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter models.RequestFilter) ([]models.StudentRequest, int, error) {
	m.lastFilter = filter
	out := make([]models.StudentRequest, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, req)
	}
	total := m.listTotal
	if total == 0 {
		total = len(out)
	}
	return out, total, nil
}

func (m *mockRequestRepo) Update(ctx context.Context, req *models.StudentRequest) error {
	m.requests[req.ID] = *req
	return nil
}

func (m *mockRequestRepo) UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error {
	req := m.requests[id]
	req.Status = status
	m.requests[id] = req
	return nil
}

func (m *mockRequestRepo) AssignTutor(ctx context.Context, id, tutorID string) (bool, error) {
	req, ok := m.requests[id]
	if !ok || m.failAssign || req.Status != models.StatusOpen {
		return false, nil
	}
	req.AssignedTutorID = &tutorID
	req.Status = models.StatusInProgress
	m.requests[id] = req
	return true, nil
}

func (m *mockRequestRepo) Delete(ctx context.Context, id string) error {
	delete(m.requests, id)
	return nil
}

type mockUserReader struct {
	users map[string]models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return nil, sql.ErrNoRows
}

type recordedEvent struct {
	Type    events.Type
	Payload interface{}
}

type mockPublisher struct {
	published []recordedEvent
}

func (m *mockPublisher) Publish(ctx context.Context, eventType events.Type, payload interface{}) error {
	m.published = append(m.published, recordedEvent{Type: eventType, Payload: payload})
	return nil
}

func newRequestFixture(strict bool) (*RequestService, *mockRequestRepo, *mockUserReader, *mockPublisher) {
	repo := &mockRequestRepo{
		requests: make(map[string]models.StudentRequest),
		students: map[string]models.UserRef{
			"s1": {ID: "s1", Name: "Sam Student", Email: "sam@example.com"},
		},
	}
	users := &mockUserReader{users: map[string]models.User{
		"t1": {ID: "t1", FullName: "Tina Tutor", Email: "tina@example.com", Role: models.RoleTutor},
		"s1": {ID: "s1", FullName: "Sam Student", Email: "sam@example.com", Role: models.RoleStudent},
	}}
	publisher := &mockPublisher{}
	svc := NewRequestService(repo, users, nil, publisher, nil, validator.New(), zap.NewNop(), RequestListOptions{
		DefaultPageSize:   10,
		MaxPageSize:       100,
		StrictTransitions: strict,
	})
	return svc, repo, users, publisher
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "s1", Role: models.RoleStudent, Email: "sam@example.com", FullName: "Sam Student"}
}

func seedRequest(repo *mockRequestRepo, status models.RequestStatus) {
	repo.requests["req-1"] = models.StudentRequest{
		ID:          "req-1",
		StudentID:   "s1",
		Subject:     models.SubjectMathematics,
		Description: "Need help with calculus",
		GradeLevel:  "Grade 11",
		RequestType: models.RequestTypeOngoing,
		Priority:    models.PriorityMedium,
		Status:      status,
	}
}

func TestRequestCreateDefaults(t *testing.T) {
	svc, repo, _, publisher := newRequestFixture(false)

	created, err := svc.Create(context.Background(), studentClaims(), models.CreateRequestInput{
		Subject:     models.SubjectScience,
		Description: "Photosynthesis basics",
		GradeLevel:  "Grade 9",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, created.Status)
	assert.Nil(t, created.AssignedTutorID)
	assert.Equal(t, models.RequestTypeOngoing, created.RequestType)
	assert.Equal(t, models.PriorityMedium, created.Priority)
	assert.NotNil(t, created.PreferredSchedule)
	assert.Empty(t, created.PreferredSchedule)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, events.TypeRequestCreated, publisher.published[0].Type)
	payload, ok := publisher.published[0].Payload.(events.RequestCreated)
	require.True(t, ok)
	assert.Equal(t, "sam@example.com", payload.StudentEmail)
	assert.Equal(t, string(models.SubjectScience), payload.Subject)

	assert.Len(t, repo.requests, 1)
}

func TestRequestCreateDeniedForNonStudents(t *testing.T) {
	svc, repo, _, publisher := newRequestFixture(false)

	for _, role := range []models.UserRole{models.RoleTutor, models.RoleAdmin} {
		_, err := svc.Create(context.Background(), &models.JWTClaims{UserID: "u1", Role: role}, models.CreateRequestInput{
			Subject:     models.SubjectEnglish,
			Description: "Essay review",
			GradeLevel:  "Grade 10",
		})
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
		assert.Contains(t, appErr.Message, string(role))
	}
	assert.Empty(t, repo.requests)
	assert.Empty(t, publisher.published)
}

func TestRequestCreateValidation(t *testing.T) {
	svc, _, _, publisher := newRequestFixture(false)

	_, err := svc.Create(context.Background(), studentClaims(), models.CreateRequestInput{
		Subject:     models.SubjectMathematics,
		Description: strings.Repeat("x", 1001),
		GradeLevel:  "Grade 10",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), studentClaims(), models.CreateRequestInput{
		Subject:     "Astrology",
		Description: "Star charts",
		GradeLevel:  "Grade 10",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	assert.Empty(t, publisher.published)
}

func TestRequestUpdateStatusByTutor(t *testing.T) {
	svc, repo, _, publisher := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)

	updated, err := svc.UpdateStatus(context.Background(), &models.JWTClaims{UserID: "t1", Role: models.RoleTutor}, "req-1", models.UpdateStatusInput{
		Status: models.StatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, models.StatusInProgress, repo.requests["req-1"].Status)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, events.TypeStatusChanged, publisher.published[0].Type)
	payload := publisher.published[0].Payload.(events.StatusChanged)
	assert.Equal(t, "in-progress", payload.NewStatus)
	assert.Equal(t, "sam@example.com", payload.StudentEmail)
}

func TestRequestUpdateStatusDeniedForStudents(t *testing.T) {
	svc, repo, _, publisher := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)

	// Even the owning student may not use the dedicated status endpoint.
	_, err := svc.UpdateStatus(context.Background(), studentClaims(), "req-1", models.UpdateStatusInput{
		Status: models.StatusCancelled,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusOpen, repo.requests["req-1"].Status)
	assert.Empty(t, publisher.published)
}

func TestRequestUpdateStatusUnknownStatus(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)

	_, err := svc.UpdateStatus(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "req-1", models.UpdateStatusInput{
		Status: "paused",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestUpdateStatusLenientAllowsAnyJump(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)
	seedRequest(repo, models.StatusCompleted)

	updated, err := svc.UpdateStatus(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "req-1", models.UpdateStatusInput{
		Status: models.StatusOpen,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, updated.Status)
}

func TestRequestUpdateStatusStrictRejectsIllegalJump(t *testing.T) {
	svc, repo, _, publisher := newRequestFixture(true)
	seedRequest(repo, models.StatusOpen)

	_, err := svc.UpdateStatus(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "req-1", models.UpdateStatusInput{
		Status: models.StatusCompleted,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusOpen, repo.requests["req-1"].Status)
	assert.Empty(t, publisher.published)

	// A legal successor still goes through.
	_, err = svc.UpdateStatus(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "req-1", models.UpdateStatusInput{
		Status: models.StatusInProgress,
	})
	require.NoError(t, err)
}

func TestAssignTutorHappyPath(t *testing.T) {
	svc, repo, _, publisher := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)

	updated, err := svc.AssignTutor(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "req-1", models.AssignTutorInput{
		TutorID: "t1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	require.NotNil(t, updated.AssignedTutorID)
	assert.Equal(t, "t1", *updated.AssignedTutorID)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, events.TypeTutorAssigned, publisher.published[0].Type)
	payload := publisher.published[0].Payload.(events.TutorAssigned)
	assert.Equal(t, "Tina Tutor", payload.TutorName)
	assert.Equal(t, "sam@example.com", payload.StudentEmail)
}

func TestAssignTutorDeniedForNonAdmins(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)

	for _, role := range []models.UserRole{models.RoleStudent, models.RoleTutor} {
		_, err := svc.AssignTutor(context.Background(), &models.JWTClaims{UserID: "u1", Role: role}, "req-1", models.AssignTutorInput{TutorID: "t1"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	}
	assert.Equal(t, models.StatusOpen, repo.requests["req-1"].Status)
}

func TestAssignTutorRejectsNonTutors(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)

	// Unknown user and non-tutor role are both "invalid tutor".
	for _, tutorID := range []string{"nobody", "s1"} {
		_, err := svc.AssignTutor(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "req-1", models.AssignTutorInput{TutorID: tutorID})
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
		assert.Equal(t, "invalid tutor", appErr.Message)
	}
}

func TestAssignTutorConflictWhenNotOpen(t *testing.T) {
	svc, repo, _, publisher := newRequestFixture(false)
	seedRequest(repo, models.StatusInProgress)

	_, err := svc.AssignTutor(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "req-1", models.AssignTutorInput{TutorID: "t1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, publisher.published)
}

func TestAssignTutorConflictWhenRaceLost(t *testing.T) {
	svc, repo, _, publisher := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)
	repo.failAssign = true

	_, err := svc.AssignTutor(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "req-1", models.AssignTutorInput{TutorID: "t1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, publisher.published)
}

func TestRequestUpdateDropsStatusWhenNotOpen(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)
	seedRequest(repo, models.StatusInProgress)

	updated, err := svc.Update(context.Background(), studentClaims(), "req-1", models.UpdateRequestInput{
		Description: "New description",
		Status:      models.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, "New description", updated.Description)
	// The status field is silently dropped once the request left open.
	assert.Equal(t, models.StatusInProgress, updated.Status)
}

func TestRequestUpdateAppliesStatusWhileOpen(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)

	updated, err := svc.Update(context.Background(), studentClaims(), "req-1", models.UpdateRequestInput{
		Status: models.StatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)
}

func TestRequestUpdateDeniedForOtherStudents(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)

	_, err := svc.Update(context.Background(), &models.JWTClaims{UserID: "s2", Role: models.RoleStudent}, "req-1", models.UpdateRequestInput{
		Description: "Hijack",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "Need help with calculus", repo.requests["req-1"].Description)
}

func TestRequestDelete(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)
	seedRequest(repo, models.StatusOpen)

	err := svc.Delete(context.Background(), &models.JWTClaims{UserID: "s2", Role: models.RoleStudent}, "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), studentClaims(), "req-1"))
	assert.Empty(t, repo.requests)
}

func TestRequestDeleteNotFound(t *testing.T) {
	svc, _, _, _ := newRequestFixture(false)

	err := svc.Delete(context.Background(), studentClaims(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAvailableScopesToOpenUnassigned(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)

	_, _, err := svc.Available(context.Background(), &models.JWTClaims{UserID: "t1", Role: models.RoleTutor}, models.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, repo.lastFilter.Status)
	assert.True(t, repo.lastFilter.OnlyUnassigned)
	assert.True(t, repo.lastFilter.ByPriority)

	_, _, err = svc.Available(context.Background(), studentClaims(), models.RequestFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignedScoping(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)

	// Tutors are pinned to their own assignments regardless of the query.
	_, _, err := svc.Assigned(context.Background(), &models.JWTClaims{UserID: "t1", Role: models.RoleTutor}, "t2", models.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, "t1", repo.lastFilter.AssignedTutorID)

	// Admins may filter by an explicit tutor id.
	_, _, err = svc.Assigned(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "t2", models.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, "t2", repo.lastFilter.AssignedTutorID)

	// Without a filter, admins see every assigned request.
	_, _, err = svc.Assigned(context.Background(), &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}, "", models.RequestFilter{})
	require.NoError(t, err)
	assert.True(t, repo.lastFilter.OnlyAssigned)

	_, _, err = svc.Assigned(context.Background(), studentClaims(), "", models.RequestFilter{})
	require.Error(t, err)
}

func TestMineScopesToActor(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)

	_, _, err := svc.Mine(context.Background(), studentClaims(), models.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, "s1", repo.lastFilter.StudentID)
}

func TestBySubjectScopesToOpen(t *testing.T) {
	svc, repo, _, _ := newRequestFixture(false)

	_, _, err := svc.BySubject(context.Background(), models.SubjectICT, models.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectICT, repo.lastFilter.Subject)
	assert.Equal(t, models.StatusOpen, repo.lastFilter.Status)

	_, _, err = svc.BySubject(context.Background(), "Astrology", models.RequestFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
