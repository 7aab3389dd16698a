package dto

// EmployeeDashboard summarises the caller's own training obligations.
type EmployeeDashboard struct {
	Counts  StatusCounts    `json:"counts"`
	Overdue []DashboardItem `json:"overdue"`
	UpNext  []DashboardItem `json:"upNext"`
}

// SupervisorDashboard lists work waiting on the caller as trainer.
type SupervisorDashboard struct {
	EmployeeDashboard
	PendingSignoffs []DashboardItem `json:"pendingSignoffs"`
}

// ManagerDashboard is the org-wide view.
type ManagerDashboard struct {
	Counts       StatusCounts    `json:"counts"`
	ByLine       []ComplianceRow `json:"byLine"`
	Overdue      []DashboardItem `json:"overdue"`
	OverdueCount int             `json:"overdueCount"`
}

// DashboardItem is a compact assignment reference for dashboard lists.
type DashboardItem struct {
	AssignmentID string `json:"assignmentId"`
	ModuleTitle  string `json:"moduleTitle"`
	TraineeName  string `json:"traineeName"`
	State        string `json:"state"`
	DueDate      string `json:"dueDate,omitempty"`
}
