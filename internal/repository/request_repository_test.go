package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyconnect/studyconnect-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var requestColumns = []string{
	"id", "student_id", "subject", "description", "grade_level", "request_type",
	"preferred_schedule", "priority", "status", "assigned_tutor_id", "responses",
	"created_at", "updated_at",
	"student_name", "student_email", "student_avatar",
	"tutor_name", "tutor_email", "tutor_avatar",
}

func openRequestRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(requestColumns).AddRow(
		"req-1", "s1", "Mathematics", "Need help with calculus", "Grade 11", "ongoing",
		"{Monday,Wednesday}", "medium", "open", nil, 0,
		now, now,
		"Sam Student", "sam@example.com", "",
		nil, nil, nil,
	)
}

func TestRequestRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_requests r")).
		WithArgs("req-1").
		WillReturnRows(openRequestRow())

	found, err := repo.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", found.ID)
	assert.Equal(t, models.StatusOpen, found.Status)
	require.NotNil(t, found.Student)
	assert.Equal(t, "Sam Student", found.Student.Name)
	assert.Equal(t, "sam@example.com", found.Student.Email)
	assert.Nil(t, found.AssignedTutor)
	assert.Equal(t, []string{"Monday", "Wednesday"}, []string(found.PreferredSchedule))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_requests r")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &models.StudentRequest{
		StudentID:         "s1",
		Subject:           models.SubjectScience,
		Description:       "Photosynthesis",
		GradeLevel:        "Grade 9",
		RequestType:       models.RequestTypeOngoing,
		PreferredSchedule: []string{},
		Priority:          models.PriorityMedium,
		Status:            models.StatusOpen,
	}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.False(t, req.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryAssignTutorCAS(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_requests")).
		WithArgs("req-1", "t1", string(models.StatusInProgress), sqlmock.AnyArg(), string(models.StatusOpen)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assigned, err := repo.AssignTutor(context.Background(), "req-1", "t1")
	require.NoError(t, err)
	assert.True(t, assigned)

	// A request that already left open matches zero rows.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_requests")).
		WithArgs("req-1", "t2", string(models.StatusInProgress), sqlmock.AnyArg(), string(models.StatusOpen)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assigned, err = repo.AssignTutor(context.Background(), "req-1", "t2")
	require.NoError(t, err)
	assert.False(t, assigned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectQuery(`r\.status = \$1 AND r\.subject = \$2 AND r\.assigned_tutor_id IS NULL ORDER BY CASE r\.priority`).
		WithArgs(string(models.StatusOpen), string(models.SubjectMathematics)).
		WillReturnRows(openRequestRow())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_requests r")).
		WithArgs(string(models.StatusOpen), string(models.SubjectMathematics)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	requests, total, err := repo.List(context.Background(), models.RequestFilter{
		Status:         models.StatusOpen,
		Subject:        models.SubjectMathematics,
		OnlyUnassigned: true,
		ByPriority:     true,
		Page:           1,
		Limit:          10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, requests, 1)
	assert.Equal(t, "req-1", requests[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_requests SET status =")).
		WithArgs("req-1", string(models.StatusCompleted), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "req-1", models.StatusCompleted))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_requests")).
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "req-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
