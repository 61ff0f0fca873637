package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyconnect/studyconnect-api/internal/models"
)

// StudyPostRepository stores forum posts, their answers, and votes.
type StudyPostRepository struct {
	db *sqlx.DB
}

// NewStudyPostRepository creates a new instance of StudyPostRepository.
func NewStudyPostRepository(db *sqlx.DB) *StudyPostRepository {
	return &StudyPostRepository{db: db}
}

const postSelect = `
SELECT
	p.id, p.user_id, p.title, p.description, p.subject_tag, p.media, p.created_at, p.updated_at,
	u.full_name AS author_name, u.email AS author_email, u.avatar AS author_avatar,
	COALESCE(v.upvotes, 0) AS upvotes, COALESCE(v.downvotes, 0) AS downvotes
FROM study_posts p
JOIN users u ON u.id = p.user_id
LEFT JOIN (
	SELECT post_id,
		COUNT(*) FILTER (WHERE value = 1) AS upvotes,
		COUNT(*) FILTER (WHERE value = -1) AS downvotes
	FROM study_post_votes GROUP BY post_id
) v ON v.post_id = p.id`

type postRow struct {
	models.StudyPost
	AuthorName   string `db:"author_name"`
	AuthorEmail  string `db:"author_email"`
	AuthorAvatar string `db:"author_avatar"`
	UpvoteCount  int    `db:"upvotes"`
	DownvoteCount int   `db:"downvotes"`
}

func (row *postRow) toModel() *models.StudyPost {
	post := row.StudyPost
	post.User = &models.UserRef{
		ID:     post.UserID,
		Name:   row.AuthorName,
		Email:  row.AuthorEmail,
		Avatar: row.AuthorAvatar,
	}
	post.Upvotes = row.UpvoteCount
	post.Downvotes = row.DownvoteCount
	return &post
}

// Create persists a new post.
func (r *StudyPostRepository) Create(ctx context.Context, post *models.StudyPost) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	const query = `INSERT INTO study_posts (id, user_id, title, description, subject_tag, media, created_at, updated_at)
		VALUES (:id, :user_id, :title, :description, :subject_tag, :media, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// List returns all posts, newest first.
func (r *StudyPostRepository) List(ctx context.Context) ([]models.StudyPost, error) {
	var rows []postRow
	if err := r.db.SelectContext(ctx, &rows, postSelect+` ORDER BY p.created_at DESC`); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]models.StudyPost, 0, len(rows))
	for i := range rows {
		posts = append(posts, *rows[i].toModel())
	}
	return posts, nil
}

// FindByID returns a post with its answers expanded.
func (r *StudyPostRepository) FindByID(ctx context.Context, id string) (*models.StudyPost, error) {
	var row postRow
	if err := r.db.GetContext(ctx, &row, postSelect+` WHERE p.id = $1 LIMIT 1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find post by id: %w", err)
	}
	post := row.toModel()

	answers, err := r.listAnswers(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Answers = answers
	return post, nil
}

type answerRow struct {
	models.StudyAnswer
	AuthorName   string `db:"author_name"`
	AuthorAvatar string `db:"author_avatar"`
}

func (r *StudyPostRepository) listAnswers(ctx context.Context, postID string) ([]models.StudyAnswer, error) {
	const query = `
SELECT a.id, a.post_id, a.user_id, a.text, a.created_at,
	u.full_name AS author_name, u.avatar AS author_avatar
FROM study_post_answers a
JOIN users u ON u.id = a.user_id
WHERE a.post_id = $1
ORDER BY a.created_at ASC`

	var rows []answerRow
	if err := r.db.SelectContext(ctx, &rows, query, postID); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	answers := make([]models.StudyAnswer, 0, len(rows))
	for _, row := range rows {
		answer := row.StudyAnswer
		answer.User = &models.UserRef{ID: answer.UserID, Name: row.AuthorName, Avatar: row.AuthorAvatar}
		answers = append(answers, answer)
	}
	return answers, nil
}

// AddAnswer attaches an answer to a post.
func (r *StudyPostRepository) AddAnswer(ctx context.Context, answer *models.StudyAnswer) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	answer.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO study_post_answers (id, post_id, user_id, text, created_at)
		VALUES (:id, :post_id, :user_id, :text, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, answer); err != nil {
		return fmt.Errorf("add answer: %w", err)
	}
	return nil
}

// Vote records or flips a user's vote. Voting the same way twice removes the
// vote, mirroring the toggle behaviour of the forum UI.
func (r *StudyPostRepository) Vote(ctx context.Context, postID, userID string, value models.VoteValue) error {
	var existing int
	err := r.db.GetContext(ctx, &existing, `SELECT value FROM study_post_votes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	switch {
	case err == sql.ErrNoRows:
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO study_post_votes (post_id, user_id, value, created_at) VALUES ($1, $2, $3, $4)`,
			postID, userID, value, time.Now().UTC())
	case err != nil:
		return fmt.Errorf("lookup vote: %w", err)
	case existing == int(value):
		_, err = r.db.ExecContext(ctx, `DELETE FROM study_post_votes WHERE post_id = $1 AND user_id = $2`, postID, userID)
	default:
		_, err = r.db.ExecContext(ctx, `UPDATE study_post_votes SET value = $3 WHERE post_id = $1 AND user_id = $2`, postID, userID, value)
	}
	if err != nil {
		return fmt.Errorf("vote post: %w", err)
	}
	return nil
}

// Delete removes a post along with its answers and votes.
func (r *StudyPostRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM study_posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}
