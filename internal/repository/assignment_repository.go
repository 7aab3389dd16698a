package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trainsmart-io/trainsmart-api/internal/models"
)

// ErrDuplicate marks unique-constraint violations so services can map them
// to conflict responses instead of generic internal errors.
var ErrDuplicate = fmt.Errorf("duplicate row")

const uniqueViolation = "23505"

const assignmentDetailColumns = `
a.id, a.module_id, a.assigned_to, a.assigned_by, a.trainer_user_id, a.due_date,
a.status, a.assigned_at, a.started_at,
m.title AS module_title, m.version AS module_version,
l.name AS line_name, cat.name AS category_name,
TRIM(tu.first_name || ' ' || tu.last_name) AS trainee_name,
CASE WHEN tr.id IS NULL THEN NULL ELSE TRIM(tr.first_name || ' ' || tr.last_name) END AS trainer_name,
c.id AS completion_id, c.completed_at,
s.id AS signoff_id, s.signed_at AS signed_off_at`

const assignmentDetailJoins = `
FROM assignments a
JOIN modules m ON m.id = a.module_id
JOIN lines l ON l.id = m.line_id
JOIN categories cat ON cat.id = m.category_id
JOIN users tu ON tu.id = a.assigned_to
LEFT JOIN users tr ON tr.id = a.trainer_user_id
LEFT JOIN completions c ON c.assignment_id = a.id
LEFT JOIN trainer_signoffs s ON s.completion_id = c.id`

// AssignmentRepository persists assignments and their completion evidence.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusAssigned
	}
	const query = `INSERT INTO assignments (id, module_id, assigned_to, assigned_by, trainer_user_id, due_date, status, assigned_at)
		VALUES (:id, :module_id, :assigned_to, :assigned_by, :trainer_user_id, :due_date, :status, :assigned_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID returns an assignment by identifier.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, module_id, assigned_to, assigned_by, trainer_user_id, due_date, status, assigned_at, started_at FROM assignments WHERE id = $1 LIMIT 1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// FindDetail returns one assignment joined with module, people, and evidence.
func (r *AssignmentRepository) FindDetail(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	query := "SELECT " + assignmentDetailColumns + assignmentDetailJoins + " WHERE a.id = $1 LIMIT 1"
	var detail models.AssignmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment detail: %w", err)
	}
	return &detail, nil
}

// List returns assignment details matching the filter with a total count.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.AssignedTo != "" && filter.TrainerUserID != "" {
		// supervisor scope: own assignments plus supervised ones
		conditions = append(conditions, fmt.Sprintf("(a.assigned_to = $%d OR a.trainer_user_id = $%d)", len(args)+1, len(args)+2))
		args = append(args, filter.AssignedTo, filter.TrainerUserID)
	} else if filter.AssignedTo != "" {
		conditions = append(conditions, fmt.Sprintf("a.assigned_to = $%d", len(args)+1))
		args = append(args, filter.AssignedTo)
	} else if filter.TrainerUserID != "" {
		conditions = append(conditions, fmt.Sprintf("a.trainer_user_id = $%d", len(args)+1))
		args = append(args, filter.TrainerUserID)
	}
	if filter.ModuleID != "" {
		conditions = append(conditions, fmt.Sprintf("a.module_id = $%d", len(args)+1))
		args = append(args, filter.ModuleID)
	}
	if filter.LineID != "" {
		conditions = append(conditions, fmt.Sprintf("m.line_id = $%d", len(args)+1))
		args = append(args, filter.LineID)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("m.category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, fmt.Sprintf("a.due_date IS NOT NULL AND a.due_date < $%d", len(args)+1))
		args = append(args, *filter.DueBefore)
	}
	if filter.NotApproved {
		// approved means a sign-off row exists on the joined completion
		conditions = append(conditions, "s.id IS NULL")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s%s ORDER BY a.assigned_at DESC LIMIT %d OFFSET %d",
		assignmentDetailColumns, assignmentDetailJoins, where, pageSize, offset)

	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", assignmentDetailJoins, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	return details, total, nil
}

// MarkStarted transitions ASSIGNED to IN_PROGRESS. The WHERE clause keeps the
// transition one-way: a row already in progress is left untouched.
func (r *AssignmentRepository) MarkStarted(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE assignments SET status = $2, started_at = $3 WHERE id = $1 AND status = $4`
	if _, err := r.db.ExecContext(ctx, query, id, models.AssignmentStatusInProgress, ts, models.AssignmentStatusAssigned); err != nil {
		return fmt.Errorf("mark assignment started: %w", err)
	}
	return nil
}

// CreateCompletion inserts the completion and its signature snapshot in one
// transaction so a completion can never exist without its signature.
func (r *AssignmentRepository) CreateCompletion(ctx context.Context, completion *models.Completion, signature *models.Signature) error {
	if completion.ID == "" {
		completion.ID = uuid.NewString()
	}
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}
	if signature.ID == "" {
		signature.ID = uuid.NewString()
	}
	signature.CompletionID = completion.ID
	if signature.CreatedAt.IsZero() {
		signature.CreatedAt = completion.CompletedAt
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin completion tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const completionQuery = `INSERT INTO completions (id, assignment_id, completed_at) VALUES (:id, :assignment_id, :completed_at)`
	if _, err := tx.NamedExecContext(ctx, completionQuery, completion); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create completion: %w", err)
	}

	const signatureQuery = `INSERT INTO signatures (id, completion_id, signer_user_id, signed_name_snapshot, signed_email_snapshot, user_agent, created_at)
		VALUES (:id, :completion_id, :signer_user_id, :signed_name_snapshot, :signed_email_snapshot, :user_agent, :created_at)`
	if _, err := tx.NamedExecContext(ctx, signatureQuery, signature); err != nil {
		return fmt.Errorf("create signature: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit completion tx: %w", err)
	}
	return nil
}

// ListCompletionsByAssignment returns every completion row for an assignment.
// The unique constraint keeps this to one row going forward; callers pick the
// authoritative one with models.LatestCompletion in case legacy data holds
// duplicates.
func (r *AssignmentRepository) ListCompletionsByAssignment(ctx context.Context, assignmentID string) ([]models.Completion, error) {
	const query = `SELECT id, assignment_id, completed_at FROM completions WHERE assignment_id = $1 ORDER BY completed_at DESC, id DESC`
	var completions []models.Completion
	if err := r.db.SelectContext(ctx, &completions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return completions, nil
}

// CreateSignoff inserts a trainer sign-off.
func (r *AssignmentRepository) CreateSignoff(ctx context.Context, signoff *models.TrainerSignoff) error {
	if signoff.ID == "" {
		signoff.ID = uuid.NewString()
	}
	if signoff.SignedAt.IsZero() {
		signoff.SignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO trainer_signoffs (id, completion_id, trainer_user_id, signed_name_snapshot, signed_email_snapshot, signed_at, user_agent)
		VALUES (:id, :completion_id, :trainer_user_id, :signed_name_snapshot, :signed_email_snapshot, :signed_at, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, signoff); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create trainer signoff: %w", err)
	}
	return nil
}

// FindSignoffByCompletion returns the sign-off for a completion, or
// sql.ErrNoRows when none exists.
func (r *AssignmentRepository) FindSignoffByCompletion(ctx context.Context, completionID string) (*models.TrainerSignoff, error) {
	const query = `SELECT id, completion_id, trainer_user_id, signed_name_snapshot, signed_email_snapshot, signed_at, user_agent FROM trainer_signoffs WHERE completion_id = $1 LIMIT 1`
	var signoff models.TrainerSignoff
	if err := r.db.GetContext(ctx, &signoff, query, completionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find trainer signoff: %w", err)
	}
	return &signoff, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}
