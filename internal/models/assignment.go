package models

import "time"

// AssignmentStatus is the stored portion of an assignment's lifecycle.
// Only ASSIGNED and IN_PROGRESS are ever written; later states are derived
// from completion and sign-off rows (see status.go).
type AssignmentStatus string

const (
	AssignmentStatusAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentStatusInProgress AssignmentStatus = "IN_PROGRESS"
)

// Assignment records that a module was assigned to a trainee, optionally
// supervised by a trainer. Rows are never deleted.
type Assignment struct {
	ID            string           `db:"id" json:"id"`
	ModuleID      string           `db:"module_id" json:"module_id"`
	AssignedTo    string           `db:"assigned_to" json:"assigned_to"`
	AssignedBy    string           `db:"assigned_by" json:"assigned_by"`
	TrainerUserID *string          `db:"trainer_user_id" json:"trainer_user_id,omitempty"`
	DueDate       *time.Time       `db:"due_date" json:"due_date,omitempty"`
	Status        AssignmentStatus `db:"status" json:"status"`
	AssignedAt    time.Time        `db:"assigned_at" json:"assigned_at"`
	StartedAt     *time.Time       `db:"started_at" json:"started_at,omitempty"`
}

// Completion is the trainee's self-certified evidence of having finished an
// assignment. At most one row per assignment, enforced by a unique constraint.
type Completion struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	CompletedAt  time.Time `db:"completed_at" json:"completed_at"`
}

// Signature captures the signer identity at completion time. Snapshot fields
// are never re-derived from the live profile.
type Signature struct {
	ID                  string    `db:"id" json:"id"`
	CompletionID        string    `db:"completion_id" json:"completion_id"`
	SignerUserID        string    `db:"signer_user_id" json:"signer_user_id"`
	SignedNameSnapshot  string    `db:"signed_name_snapshot" json:"signed_name_snapshot"`
	SignedEmailSnapshot string    `db:"signed_email_snapshot" json:"signed_email_snapshot"`
	UserAgent           string    `db:"user_agent" json:"user_agent"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// TrainerSignoff is the trainer's approval of a completion, the terminal
// lifecycle step. At most one row per completion.
type TrainerSignoff struct {
	ID                  string    `db:"id" json:"id"`
	CompletionID        string    `db:"completion_id" json:"completion_id"`
	TrainerUserID       string    `db:"trainer_user_id" json:"trainer_user_id"`
	SignedNameSnapshot  string    `db:"signed_name_snapshot" json:"signed_name_snapshot"`
	SignedEmailSnapshot string    `db:"signed_email_snapshot" json:"signed_email_snapshot"`
	SignedAt            time.Time `db:"signed_at" json:"signed_at"`
	UserAgent           string    `db:"user_agent" json:"user_agent"`
}

// AssignmentDetail joins an assignment with its module, people, and child
// rows. CompletedAt/SignedOffAt come from outer joins and are nil until the
// corresponding row exists.
type AssignmentDetail struct {
	Assignment
	ModuleTitle   string     `db:"module_title" json:"module_title"`
	ModuleVersion int        `db:"module_version" json:"module_version"`
	LineName      string     `db:"line_name" json:"line_name"`
	CategoryName  string     `db:"category_name" json:"category_name"`
	TraineeName   string     `db:"trainee_name" json:"trainee_name"`
	TrainerName   *string    `db:"trainer_name" json:"trainer_name,omitempty"`
	CompletionID  *string    `db:"completion_id" json:"completion_id,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	SignoffID     *string    `db:"signoff_id" json:"signoff_id,omitempty"`
	SignedOffAt   *time.Time `db:"signed_off_at" json:"signed_off_at,omitempty"`

	// DerivedState is computed by DeriveStatus before the row leaves the
	// service layer; it is never read from storage.
	DerivedState AssignmentState `db:"-" json:"state"`
}

// AssignmentFilter captures filtering and row-scoping criteria.
type AssignmentFilter struct {
	AssignedTo    string
	TrainerUserID string
	ModuleID      string
	LineID        string
	CategoryID    string
	DueBefore     *time.Time
	NotApproved   bool
	Page          int
	PageSize      int
}

// MaterialAccess is the resolved download grant for a training material.
type MaterialAccess struct {
	URL       string     `json:"url"`
	ExpiresAt time.Time  `json:"expires_at"`
	Type      ModuleType `json:"type"`
}
