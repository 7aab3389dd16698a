package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trainsmart-io/trainsmart-api/internal/models"
)

// ComplianceSource is one assignment row with its group key and the evidence
// markers needed to derive the lifecycle state. Aggregation happens in the
// service so every count goes through the same derivation as the list views.
type ComplianceSource struct {
	GroupID      string                  `db:"group_id"`
	GroupName    string                  `db:"group_name"`
	Status       models.AssignmentStatus `db:"status"`
	CompletionID *string                 `db:"completion_id"`
	SignoffID    *string                 `db:"signoff_id"`
	DueDate      *time.Time              `db:"due_date"`
}

// TrendBucket is one calendar month of completion and sign-off volume.
type TrendBucket struct {
	Month       time.Time `db:"month"`
	Completions int       `db:"completions"`
	Signoffs    int       `db:"signoffs"`
}

// ComplianceGroupBy values accepted by ComplianceRows.
const (
	GroupByLine     = "line"
	GroupByCategory = "category"
	GroupByModule   = "module"
	GroupByEmployee = "employee"
)

// ReportRepository reads the aggregation sources for compliance reporting.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ComplianceRows returns one row per assignment with the requested group key.
func (r *ReportRepository) ComplianceRows(ctx context.Context, groupBy, lineID, categoryID, moduleID string) ([]ComplianceSource, error) {
	var groupCols string
	switch groupBy {
	case GroupByCategory:
		groupCols = "cat.id AS group_id, cat.name AS group_name"
	case GroupByModule:
		groupCols = "m.id AS group_id, m.title AS group_name"
	case GroupByEmployee:
		groupCols = "tu.id AS group_id, TRIM(tu.first_name || ' ' || tu.last_name) AS group_name"
	default:
		groupCols = "l.id AS group_id, l.name AS group_name"
	}

	var conditions []string
	var args []interface{}
	if lineID != "" {
		conditions = append(conditions, fmt.Sprintf("m.line_id = $%d", len(args)+1))
		args = append(args, lineID)
	}
	if categoryID != "" {
		conditions = append(conditions, fmt.Sprintf("m.category_id = $%d", len(args)+1))
		args = append(args, categoryID)
	}
	if moduleID != "" {
		conditions = append(conditions, fmt.Sprintf("a.module_id = $%d", len(args)+1))
		args = append(args, moduleID)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s, a.status, a.due_date, c.id AS completion_id, s.id AS signoff_id
FROM assignments a
JOIN modules m ON m.id = a.module_id
JOIN lines l ON l.id = m.line_id
JOIN categories cat ON cat.id = m.category_id
JOIN users tu ON tu.id = a.assigned_to
LEFT JOIN completions c ON c.assignment_id = a.id
LEFT JOIN trainer_signoffs s ON s.completion_id = c.id%s
ORDER BY group_name ASC`, groupCols, where)

	var rows []ComplianceSource
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("compliance rows: %w", err)
	}
	return rows, nil
}

// Trend returns monthly completion and sign-off counts since the given cutoff.
func (r *ReportRepository) Trend(ctx context.Context, since time.Time) ([]TrendBucket, error) {
	const query = `SELECT date_trunc('month', c.completed_at) AS month,
COUNT(*) AS completions,
COUNT(s.id) AS signoffs
FROM completions c
LEFT JOIN trainer_signoffs s ON s.completion_id = c.id
WHERE c.completed_at >= $1
GROUP BY 1
ORDER BY 1 ASC`
	var buckets []TrendBucket
	if err := r.db.SelectContext(ctx, &buckets, query, since); err != nil {
		return nil, fmt.Errorf("completion trend: %w", err)
	}
	return buckets, nil
}
