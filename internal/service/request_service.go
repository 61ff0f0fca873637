package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyconnect/studyconnect-api/internal/events"
	"github.com/studyconnect/studyconnect-api/internal/models"
	appErrors "github.com/studyconnect/studyconnect-api/pkg/errors"
)

type requestRepository interface {
	Create(ctx context.Context, req *models.StudentRequest) error
	FindByID(ctx context.Context, id string) (*models.StudentRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.StudentRequest, int, error)
	Update(ctx context.Context, req *models.StudentRequest) error
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error
	AssignTutor(ctx context.Context, id, tutorID string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type requestUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RequestListOptions tunes pagination and the strictness toggle.
type RequestListOptions struct {
	DefaultPageSize   int
	MaxPageSize       int
	StrictTransitions bool
}

// cachedRequestList is the Redis payload for a cached listing page.
type cachedRequestList struct {
	Items []models.StudentRequest `json:"items"`
	Total int                     `json:"total"`
}

// RequestService manages the student request lifecycle.
type RequestService struct {
	repo      requestRepository
	users     requestUserReader
	cache     *CacheService
	publisher events.Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	opts      RequestListOptions
}

// NewRequestService constructs the request service.
func NewRequestService(repo requestRepository, users requestUserReader, cache *CacheService, publisher events.Publisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opts RequestListOptions) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 10
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	return &RequestService{
		repo:      repo,
		users:     users,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		opts:      opts,
	}
}

// Create registers a new tutoring request owned by the acting student.
func (s *RequestService) Create(ctx context.Context, actor *models.JWTClaims, input models.CreateRequestInput) (*models.StudentRequest, error) {
	if decision := Authorize(ActionCreateRequest, actor, ""); !decision.Allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, decision.Reason)
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if !models.ValidSubject(input.Subject) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject %q", input.Subject))
	}
	if !models.ValidGradeLevel(input.GradeLevel) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grade level %q", input.GradeLevel))
	}

	requestType := input.RequestType
	if requestType == "" {
		requestType = models.RequestTypeOngoing
	} else if !models.ValidRequestType(requestType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request type %q", requestType))
	}
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	} else if !models.ValidPriority(priority) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", priority))
	}
	schedule := input.PreferredSchedule
	if schedule == nil {
		schedule = []string{}
	}

	request := &models.StudentRequest{
		StudentID:         actor.UserID,
		Subject:           input.Subject,
		Description:       input.Description,
		GradeLevel:        input.GradeLevel,
		RequestType:       requestType,
		PreferredSchedule: schedule,
		Priority:          priority,
		Status:            models.StatusOpen,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	created, err := s.repo.FindByID(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load created request")
	}

	s.metrics.RecordRequestCreated()
	s.invalidateListings(ctx)
	s.publish(ctx, events.TypeRequestCreated, events.RequestCreated{
		RequestID:    created.ID,
		Subject:      string(created.Subject),
		GradeLevel:   string(created.GradeLevel),
		Description:  created.Description,
		StudentName:  actor.FullName,
		StudentEmail: actor.Email,
	})
	return created, nil
}

// List returns requests matching the filter, serving repeated public
// listings from cache.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	s.normalize(&filter)

	key := s.listCacheKey(filter)
	var cached cachedRequestList
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, models.NewPagination(filter.Page, filter.Limit, cached.Total), nil
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	_ = s.cache.Set(ctx, key, cachedRequestList{Items: items, Total: total}, 0)
	return items, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Get returns a single request with its expanded user references.
func (s *RequestService) Get(ctx context.Context, id string) (*models.StudentRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

// Mine lists the acting user's own requests, newest first.
func (s *RequestService) Mine(ctx context.Context, actor *models.JWTClaims, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	filter.StudentID = actor.UserID
	s.normalize(&filter)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return items, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// BySubject lists open requests for one subject.
func (s *RequestService) BySubject(ctx context.Context, subject models.Subject, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	if !models.ValidSubject(subject) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject %q", subject))
	}
	filter.Subject = subject
	filter.Status = models.StatusOpen
	return s.List(ctx, filter)
}

// Assigned lists requests assigned to a tutor. Tutors only see their own
// assignments; admins see every assignment and may filter by tutor.
func (s *RequestService) Assigned(ctx context.Context, actor *models.JWTClaims, tutorID string, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	if decision := Authorize(ActionViewAssigned, actor, ""); !decision.Allowed {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, decision.Reason)
	}
	if actor.Role == models.RoleTutor {
		filter.AssignedTutorID = actor.UserID
	} else {
		filter.AssignedTutorID = tutorID
	}
	if filter.AssignedTutorID == "" {
		// Admins without a tutor filter see every assigned request.
		filter.OnlyAssigned = true
	}
	s.normalize(&filter)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assigned requests")
	}
	return items, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Available lists open unassigned requests for tutors to browse, highest
// priority first.
func (s *RequestService) Available(ctx context.Context, actor *models.JWTClaims, filter models.RequestFilter) ([]models.StudentRequest, *models.Pagination, error) {
	if decision := Authorize(ActionViewAvailable, actor, ""); !decision.Allowed {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, decision.Reason)
	}
	filter.Status = models.StatusOpen
	filter.OnlyUnassigned = true
	filter.ByPriority = true
	s.normalize(&filter)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available requests")
	}
	return items, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Update applies a partial edit. Status changes ride along only while the
// request is still open; on any other state the field is dropped without
// error so the rest of the edit still lands.
func (s *RequestService) Update(ctx context.Context, actor *models.JWTClaims, id string, input models.UpdateRequestInput) (*models.StudentRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if decision := Authorize(ActionUpdateRequest, actor, request.StudentID); !decision.Allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, decision.Reason)
	}

	if input.Subject != "" {
		if !models.ValidSubject(input.Subject) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject %q", input.Subject))
		}
		request.Subject = input.Subject
	}
	if input.Description != "" {
		if len(input.Description) > models.MaxDescriptionLength {
			return nil, appErrors.Clone(appErrors.ErrValidation, "description exceeds 1000 characters")
		}
		request.Description = input.Description
	}
	if input.GradeLevel != "" {
		if !models.ValidGradeLevel(input.GradeLevel) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grade level %q", input.GradeLevel))
		}
		request.GradeLevel = input.GradeLevel
	}
	if input.RequestType != "" {
		if !models.ValidRequestType(input.RequestType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown request type %q", input.RequestType))
		}
		request.RequestType = input.RequestType
	}
	if input.PreferredSchedule != nil {
		request.PreferredSchedule = input.PreferredSchedule
	}
	if input.Priority != "" {
		if !models.ValidPriority(input.Priority) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", input.Priority))
		}
		request.Priority = input.Priority
	}
	if input.Status != "" && request.Status == models.StatusOpen {
		if !models.ValidStatus(input.Status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", input.Status))
		}
		request.Status = input.Status
	}

	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	s.invalidateListings(ctx)
	return s.Get(ctx, id)
}

// UpdateStatus moves a request to a new lifecycle status and notifies the
// owning student. With strict transitions enabled, moves that do not follow
// the lifecycle are rejected.
func (s *RequestService) UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, input models.UpdateStatusInput) (*models.StudentRequest, error) {
	if decision := Authorize(ActionUpdateStatus, actor, ""); !decision.Allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, decision.Reason)
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status is required")
	}
	if !models.ValidStatus(input.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", input.Status))
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.opts.StrictTransitions && !models.LegalTransition(request.Status, input.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move request from %s to %s", request.Status, input.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, input.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}
	request.Status = input.Status

	s.metrics.RecordTransition(string(input.Status))
	s.invalidateListings(ctx)
	if request.Student != nil {
		s.publish(ctx, events.TypeStatusChanged, events.StatusChanged{
			RequestID:    request.ID,
			Subject:      string(request.Subject),
			NewStatus:    string(request.Status),
			StudentName:  request.Student.Name,
			StudentEmail: request.Student.Email,
		})
	}
	return request, nil
}

// AssignTutor assigns a tutor to an open request, moving it to in-progress.
// Assignment is conditional on the request still being open, so concurrent
// assigns cannot both win.
func (s *RequestService) AssignTutor(ctx context.Context, actor *models.JWTClaims, id string, input models.AssignTutorInput) (*models.StudentRequest, error) {
	if decision := Authorize(ActionAssignTutor, actor, ""); !decision.Allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, decision.Reason)
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "tutorId is required")
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tutor, err := s.users.FindByID(ctx, input.TutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid tutor")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	if tutor.Role != models.RoleTutor {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid tutor")
	}
	if request.Status != models.StatusOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "can only assign tutor to open requests")
	}

	assigned, err := s.repo.AssignTutor(ctx, id, tutor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign tutor")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrConflict, "can only assign tutor to open requests")
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(string(models.StatusInProgress))
	s.invalidateListings(ctx)
	if updated.Student != nil {
		s.publish(ctx, events.TypeTutorAssigned, events.TutorAssigned{
			RequestID:    updated.ID,
			Subject:      string(updated.Subject),
			TutorName:    tutor.FullName,
			StudentName:  updated.Student.Name,
			StudentEmail: updated.Student.Email,
		})
	}
	return updated, nil
}

// Delete removes a request entirely.
func (s *RequestService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	request, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if decision := Authorize(ActionDeleteRequest, actor, request.StudentID); !decision.Allowed {
		return appErrors.Clone(appErrors.ErrForbidden, decision.Reason)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}
	s.invalidateListings(ctx)
	return nil
}

func (s *RequestService) normalize(filter *models.RequestFilter) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = s.opts.DefaultPageSize
	}
	if filter.Limit > s.opts.MaxPageSize {
		filter.Limit = s.opts.MaxPageSize
	}
}

func (s *RequestService) listCacheKey(filter models.RequestFilter) string {
	parts := []string{
		"requests", "list",
		string(filter.Status), string(filter.Subject), string(filter.GradeLevel), string(filter.Priority),
		filter.StudentID, filter.AssignedTutorID,
		fmt.Sprintf("u%t", filter.OnlyUnassigned), fmt.Sprintf("s%t", filter.ByPriority),
		fmt.Sprintf("p%d", filter.Page), fmt.Sprintf("l%d", filter.Limit),
	}
	return strings.Join(parts, ":")
}

func (s *RequestService) invalidateListings(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, "requests:*")
}

// publish emits a post-commit event. Delivery failures are logged, never
// returned: the mutation already persisted.
func (s *RequestService) publish(ctx context.Context, eventType events.Type, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", string(eventType)), zap.Error(err))
	}
}
