package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trainsmart-io/trainsmart-api/internal/models"
)

const moduleColumns = `id, title, version, line_id, category_id, storage_path, type, active, created_by, created_at`

// ModuleRepository persists training modules and their lookup tables.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository constructs the repository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// FindByID returns a module by identifier.
func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*models.Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE id = $1 LIMIT 1`
	var module models.Module
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find module: %w", err)
	}
	return &module, nil
}

// List returns module details matching the filter with a total count.
func (r *ModuleRepository) List(ctx context.Context, filter models.ModuleFilter) ([]models.ModuleDetail, int, error) {
	baseQuery := `FROM modules m JOIN lines l ON l.id = m.line_id JOIN categories c ON c.id = m.category_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.LineID != "" {
		conditions = append(conditions, fmt.Sprintf("m.line_id = $%d", len(args)+1))
		args = append(args, filter.LineID)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("m.category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("m.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(m.title) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
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

	listQuery := fmt.Sprintf(`SELECT m.id, m.title, m.version, m.line_id, m.category_id, m.storage_path, m.type, m.active, m.created_by, m.created_at,
		l.name AS line_name, c.name AS category_name %s ORDER BY m.title ASC, m.version DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var modules []models.ModuleDetail
	if err := r.db.SelectContext(ctx, &modules, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list modules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count modules: %w", err)
	}

	return modules, total, nil
}

// Create inserts a new module row.
func (r *ModuleRepository) Create(ctx context.Context, module *models.Module) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	if module.Version <= 0 {
		module.Version = 1
	}
	if module.CreatedAt.IsZero() {
		module.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO modules (id, title, version, line_id, category_id, storage_path, type, active, created_by, created_at)
		VALUES (:id, :title, :version, :line_id, :category_id, :storage_path, :type, :active, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// Deactivate hides a module from new assignment without touching history.
func (r *ModuleRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE modules SET active = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate module: %w", err)
	}
	return nil
}

// FindLineByID returns a production line.
func (r *ModuleRepository) FindLineByID(ctx context.Context, id string) (*models.Line, error) {
	const query = `SELECT id, name, created_at FROM lines WHERE id = $1 LIMIT 1`
	var line models.Line
	if err := r.db.GetContext(ctx, &line, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find line: %w", err)
	}
	return &line, nil
}

// FindCategoryByID returns a category.
func (r *ModuleRepository) FindCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	const query = `SELECT id, name, created_at FROM categories WHERE id = $1 LIMIT 1`
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &category, nil
}
