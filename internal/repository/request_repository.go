package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyconnect/studyconnect-api/internal/models"
)

// RequestRepository is the authoritative store for student tutoring requests.
// User references are kept by id only; reads expand them via joins.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new instance of RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestSelect = `
SELECT
	r.id, r.student_id, r.subject, r.description, r.grade_level, r.request_type,
	r.preferred_schedule, r.priority, r.status, r.assigned_tutor_id, r.responses,
	r.created_at, r.updated_at,
	s.full_name AS student_name, s.email AS student_email, s.avatar AS student_avatar,
	t.full_name AS tutor_name, t.email AS tutor_email, t.avatar AS tutor_avatar
FROM student_requests r
JOIN users s ON s.id = r.student_id
LEFT JOIN users t ON t.id = r.assigned_tutor_id`

// requestRow carries a request together with its joined user references.
type requestRow struct {
	models.StudentRequest
	StudentName   string         `db:"student_name"`
	StudentEmail  string         `db:"student_email"`
	StudentAvatar string         `db:"student_avatar"`
	TutorName     sql.NullString `db:"tutor_name"`
	TutorEmail    sql.NullString `db:"tutor_email"`
	TutorAvatar   sql.NullString `db:"tutor_avatar"`
}

func (row *requestRow) toModel() *models.StudentRequest {
	req := row.StudentRequest
	req.Student = &models.UserRef{
		ID:     req.StudentID,
		Name:   row.StudentName,
		Email:  row.StudentEmail,
		Avatar: row.StudentAvatar,
	}
	if req.AssignedTutorID != nil && row.TutorName.Valid {
		req.AssignedTutor = &models.UserRef{
			ID:     *req.AssignedTutorID,
			Name:   row.TutorName.String,
			Email:  row.TutorEmail.String,
			Avatar: row.TutorAvatar.String,
		}
	}
	return &req
}

// Create persists a new request.
func (r *RequestRepository) Create(ctx context.Context, req *models.StudentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	const query = `INSERT INTO student_requests
		(id, student_id, subject, description, grade_level, request_type, preferred_schedule, priority, status, assigned_tutor_id, responses, created_at, updated_at)
		VALUES (:id, :student_id, :subject, :description, :grade_level, :request_type, :preferred_schedule, :priority, :status, :assigned_tutor_id, :responses, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// FindByID returns a request with expanded student and tutor references.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.StudentRequest, error) {
	query := requestSelect + ` WHERE r.id = $1 LIMIT 1`
	var row requestRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request by id: %w", err)
	}
	return row.toModel(), nil
}

// List returns requests matching the filter plus the total match count.
// A Limit of zero disables pagination.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.StudentRequest, int, error) {
	var conditions []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, len(args)+1))
		args = append(args, value)
	}

	if filter.Status != "" {
		add("r.status = $%d", filter.Status)
	}
	if filter.Subject != "" {
		add("r.subject = $%d", filter.Subject)
	}
	if filter.GradeLevel != "" {
		add("r.grade_level = $%d", filter.GradeLevel)
	}
	if filter.Priority != "" {
		add("r.priority = $%d", filter.Priority)
	}
	if filter.StudentID != "" {
		add("r.student_id = $%d", filter.StudentID)
	}
	if filter.AssignedTutorID != "" {
		add("r.assigned_tutor_id = $%d", filter.AssignedTutorID)
	}
	if filter.OnlyUnassigned {
		conditions = append(conditions, "r.assigned_tutor_id IS NULL")
	}
	if filter.OnlyAssigned {
		conditions = append(conditions, "r.assigned_tutor_id IS NOT NULL")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := " ORDER BY r.created_at DESC"
	if filter.ByPriority {
		orderBy = ` ORDER BY CASE r.priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, r.created_at DESC`
	}

	limitClause := ""
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		limitClause = fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, (page-1)*filter.Limit)
	}

	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, requestSelect+where+orderBy+limitClause, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM student_requests r" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	requests := make([]models.StudentRequest, 0, len(rows))
	for i := range rows {
		requests = append(requests, *rows[i].toModel())
	}
	return requests, total, nil
}

// Update overwrites the mutable request fields. Status is included because
// the generic path has already decided whether a status change is accepted.
func (r *RequestRepository) Update(ctx context.Context, req *models.StudentRequest) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_requests SET
		subject = :subject, description = :description, grade_level = :grade_level,
		request_type = :request_type, preferred_schedule = :preferred_schedule,
		priority = :priority, status = :status, updated_at = :updated_at
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return nil
}

// UpdateStatus sets the lifecycle status unconditionally.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error {
	const query = `UPDATE student_requests SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return nil
}

// AssignTutor atomically assigns a tutor to an open request, moving it to
// in-progress. The status guard lives in the UPDATE itself so two concurrent
// assignments cannot both succeed. Returns false when the request was no
// longer open.
func (r *RequestRepository) AssignTutor(ctx context.Context, id, tutorID string) (bool, error) {
	const query = `UPDATE student_requests
		SET assigned_tutor_id = $2, status = $3, updated_at = $4
		WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, tutorID, models.StatusInProgress, time.Now().UTC(), models.StatusOpen)
	if err != nil {
		return false, fmt.Errorf("assign tutor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("assign tutor rows affected: %w", err)
	}
	return affected == 1, nil
}

// Delete physically removes a request. There is no soft delete.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM student_requests WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}
