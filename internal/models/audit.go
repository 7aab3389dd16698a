package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin            = "LOGIN"
	AuditActionLogout           = "LOGOUT"
	AuditActionUserCreate       = "USER_CREATE"
	AuditActionUserUpdate       = "USER_UPDATE"
	AuditActionUserDeactivate   = "USER_DEACTIVATE"
	AuditActionPasswordChange   = "PASSWORD_CHANGE"
	AuditActionPasswordReset    = "PASSWORD_RESET"
	AuditActionModuleCreate     = "MODULE_CREATE"
	AuditActionModuleRepublish  = "MODULE_REPUBLISH"
	AuditActionModuleDeactivate = "MODULE_DEACTIVATE"
	AuditActionAssignmentCreate = "ASSIGNMENT_CREATE"
	AuditActionMaterialOpen     = "MATERIAL_OPEN"
	AuditActionCompletionCreate = "COMPLETION_CREATE"
	AuditActionSignoffCreate    = "SIGNOFF_CREATE"
	AuditActionNotifySent       = "NOTIFY_SENT"
	AuditActionNotifyFailed     = "NOTIFY_FAILED"
	AuditActionNotifySkipped    = "NOTIFY_SKIPPED"
	AuditActionReportExport     = "REPORT_EXPORT"
	AuditActionFileDownload     = "FILE_DOWNLOAD"
)

// AuditLog represents an append-only audit trail record. Entries are written
// as a side effect of every mutating operation and never updated or deleted.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
