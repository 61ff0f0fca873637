package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyconnect/studyconnect-api/internal/models"
	appErrors "github.com/studyconnect/studyconnect-api/pkg/errors"
)

type studyPostRepository interface {
	Create(ctx context.Context, post *models.StudyPost) error
	List(ctx context.Context) ([]models.StudyPost, error)
	FindByID(ctx context.Context, id string) (*models.StudyPost, error)
	AddAnswer(ctx context.Context, answer *models.StudyAnswer) error
	Vote(ctx context.Context, postID, userID string, value models.VoteValue) error
	Delete(ctx context.Context, id string) error
}

// StudyPostService manages the study forum.
type StudyPostService struct {
	repo      studyPostRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudyPostService constructs the study post service.
func NewStudyPostService(repo studyPostRepository, validate *validator.Validate, logger *zap.Logger) *StudyPostService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudyPostService{repo: repo, validator: validate, logger: logger}
}

// Create publishes a new forum post owned by the acting user.
func (s *StudyPostService) Create(ctx context.Context, actor *models.JWTClaims, input models.CreatePostInput) (*models.StudyPost, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid post payload")
	}
	media := input.Media
	if media == nil {
		media = []string{}
	}
	post := &models.StudyPost{
		UserID:      actor.UserID,
		Title:       input.Title,
		Description: input.Description,
		SubjectTag:  input.SubjectTag,
		Media:       media,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create post")
	}
	return s.Get(ctx, post.ID)
}

// List returns all forum posts, newest first.
func (s *StudyPostService) List(ctx context.Context) ([]models.StudyPost, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list posts")
	}
	return posts, nil
}

// Get returns one post with its answers and vote counts.
func (s *StudyPostService) Get(ctx context.Context, id string) (*models.StudyPost, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load post")
	}
	return post, nil
}

// Answer adds a reply to a post.
func (s *StudyPostService) Answer(ctx context.Context, actor *models.JWTClaims, postID string, input models.AddAnswerInput) (*models.StudyPost, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid answer payload")
	}
	if _, err := s.Get(ctx, postID); err != nil {
		return nil, err
	}
	answer := &models.StudyAnswer{
		PostID: postID,
		UserID: actor.UserID,
		Text:   input.Text,
	}
	if err := s.repo.AddAnswer(ctx, answer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add answer")
	}
	return s.Get(ctx, postID)
}

// Vote records or toggles the acting user's vote on a post.
func (s *StudyPostService) Vote(ctx context.Context, actor *models.JWTClaims, postID string, input models.VoteInput) (*models.StudyPost, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid vote payload")
	}
	if _, err := s.Get(ctx, postID); err != nil {
		return nil, err
	}
	if err := s.repo.Vote(ctx, postID, actor.UserID, input.Value); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record vote")
	}
	return s.Get(ctx, postID)
}

// Delete removes a post. Only the author or an admin may delete.
func (s *StudyPostService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && actor.UserID != post.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "not authorized to delete this post")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete post")
	}
	return nil
}
