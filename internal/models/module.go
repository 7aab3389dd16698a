package models

import "time"

// ModuleType enumerates supported training material formats.
type ModuleType string

const (
	ModuleTypeDoc   ModuleType = "DOC"
	ModuleTypePPT   ModuleType = "PPT"
	ModuleTypeVideo ModuleType = "VIDEO"
)

// Line represents a production line training content is organised under.
type Line struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Category groups training modules by topic.
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Module is a versioned unit of training content. Rows are immutable once
// assigned: republishing inserts a new row with version+1 and deactivates
// the predecessor so assigned history keeps pointing at the exact material
// the trainee saw.
type Module struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Version     int        `db:"version" json:"version"`
	LineID      string     `db:"line_id" json:"line_id"`
	CategoryID  string     `db:"category_id" json:"category_id"`
	StoragePath string     `db:"storage_path" json:"-"`
	Type        ModuleType `db:"type" json:"type"`
	Active      bool       `db:"active" json:"active"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// ModuleDetail enriches a module with lookup names for list views.
type ModuleDetail struct {
	Module
	LineName     string `db:"line_name" json:"line_name"`
	CategoryName string `db:"category_name" json:"category_name"`
}

// ModuleFilter captures filtering criteria for listing modules.
type ModuleFilter struct {
	LineID     string
	CategoryID string
	Active     *bool
	Search     string
	Page       int
	PageSize   int
}
