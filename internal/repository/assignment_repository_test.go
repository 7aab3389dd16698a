package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainsmart-io/trainsmart-api/internal/models"
)

func TestCreateAssignment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.Assignment{
		ModuleID:   "m1",
		AssignedTo: "u1",
		AssignedBy: "sup1",
	}
	err := repo.Create(context.Background(), assignment)
	require.NoError(t, err)
	assert.NotEmpty(t, assignment.ID)
	assert.Equal(t, models.AssignmentStatusAssigned, assignment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkStartedOnlyFromAssigned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	ts := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET status = $2, started_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("a1", models.AssignmentStatusInProgress, ts, models.AssignmentStatusAssigned).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkStarted(context.Background(), "a1", ts)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCompletionWithSignature(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO completions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO signatures").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	completion := &models.Completion{AssignmentID: "a1"}
	signature := &models.Signature{
		SignerUserID:        "u1",
		SignedNameSnapshot:  "Pat Doe",
		SignedEmailSnapshot: "pat@example.com",
	}
	err := repo.CreateCompletion(context.Background(), completion, signature)
	require.NoError(t, err)
	assert.Equal(t, completion.ID, signature.CompletionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCompletionDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO completions").WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	err := repo.CreateCompletion(context.Background(), &models.Completion{AssignmentID: "a1"}, &models.Signature{SignerUserID: "u1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSignoffDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO trainer_signoffs").WillReturnError(&pq.Error{Code: uniqueViolation})

	err := repo.CreateSignoff(context.Background(), &models.TrainerSignoff{CompletionID: "c1", TrainerUserID: "t1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCompletionsByAssignmentEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, assignment_id, completed_at FROM completions WHERE assignment_id = $1 ORDER BY completed_at DESC, id DESC")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assignment_id", "completed_at"}))

	completions, err := repo.ListCompletionsByAssignment(context.Background(), "a1")
	require.NoError(t, err)
	assert.Empty(t, completions)
	assert.Nil(t, models.LatestCompletion(completions))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNotApprovedFilterInQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	// overdue listings must exclude signed-off rows in SQL so the count and
	// page reflect the same row set
	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT.*WHERE a\.due_date IS NOT NULL AND a\.due_date < \$1 AND s\.id IS NULL ORDER BY a\.assigned_at DESC`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\).*AND s\.id IS NULL`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.AssignmentFilter{DueBefore: &now, NotApproved: true})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
