package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyconnect/studyconnect-api/internal/events"
	"github.com/studyconnect/studyconnect-api/internal/models"
	appErrors "github.com/studyconnect/studyconnect-api/pkg/errors"
)

type feedbackRepository interface {
	Create(ctx context.Context, fb *models.Feedback) error
	List(ctx context.Context) ([]models.Feedback, error)
	FindByID(ctx context.Context, id string) (*models.Feedback, error)
	Update(ctx context.Context, fb *models.Feedback) error
	Delete(ctx context.Context, id string) error
}

// FeedbackService records lesson feedback and notifies the tutor concerned.
type FeedbackService struct {
	repo      feedbackRepository
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeedbackService constructs the feedback service.
func NewFeedbackService(repo feedbackRepository, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{repo: repo, publisher: publisher, validator: validate, logger: logger}
}

// Create stores feedback and emits a notification event for the tutor.
func (s *FeedbackService) Create(ctx context.Context, input models.FeedbackInput) (*models.Feedback, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	fb := &models.Feedback{
		TutorName: input.TutorName,
		TutorMail: input.TutorMail,
		Lesson:    input.Lesson,
		Feedback:  input.Feedback,
		Rating:    input.Rating,
	}
	if err := s.repo.Create(ctx, fb); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create feedback")
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.TypeFeedbackCreated, events.FeedbackCreated{
			TutorName:  fb.TutorName,
			TutorEmail: fb.TutorMail,
			Lesson:     fb.Lesson,
			Feedback:   fb.Feedback,
			Rating:     fb.Rating,
		}); err != nil {
			s.logger.Warn("event publish failed", zap.String("type", string(events.TypeFeedbackCreated)), zap.Error(err))
		}
	}
	return fb, nil
}

// List returns all recorded feedback, newest first.
func (s *FeedbackService) List(ctx context.Context) ([]models.Feedback, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return items, nil
}

// Get returns one feedback entry.
func (s *FeedbackService) Get(ctx context.Context, id string) (*models.Feedback, error) {
	fb, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	return fb, nil
}

// Update overwrites an existing feedback entry.
func (s *FeedbackService) Update(ctx context.Context, id string, input models.FeedbackInput) (*models.Feedback, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	fb, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fb.TutorName = input.TutorName
	fb.TutorMail = input.TutorMail
	fb.Lesson = input.Lesson
	fb.Feedback = input.Feedback
	fb.Rating = input.Rating
	if err := s.repo.Update(ctx, fb); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update feedback")
	}
	return fb, nil
}

// Delete removes a feedback entry.
func (s *FeedbackService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete feedback")
	}
	return nil
}
