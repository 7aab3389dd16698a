package dto

import "time"

// CreateAssignmentRequest assigns a module to a trainee, optionally with a
// supervising trainer and a due date.
type CreateAssignmentRequest struct {
	ModuleID      string     `json:"module_id" validate:"required,uuid4"`
	AssignedTo    string     `json:"assigned_to" validate:"required,uuid4"`
	TrainerUserID *string    `json:"trainer_user_id,omitempty" validate:"omitempty,uuid4"`
	DueDate       *time.Time `json:"due_date,omitempty"`
}

// ListAssignmentsRequest carries list filters from the query string.
type ListAssignmentsRequest struct {
	ModuleID   string `form:"moduleId" validate:"omitempty,uuid4"`
	LineID     string `form:"lineId" validate:"omitempty,uuid4"`
	CategoryID string `form:"categoryId" validate:"omitempty,uuid4"`
	Overdue    bool   `form:"overdue"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}
