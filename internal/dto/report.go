package dto

// ComplianceFilter scopes the compliance report.
type ComplianceFilter struct {
	GroupBy    string `form:"groupBy"`
	LineID     string `form:"lineId"`
	CategoryID string `form:"categoryId"`
	ModuleID   string `form:"moduleId"`
}

// StatusCounts tallies assignments per derived lifecycle state.
type StatusCounts struct {
	NotStarted      int `json:"notStarted"`
	InProgress      int `json:"inProgress"`
	AwaitingSignoff int `json:"awaitingSignoff"`
	Approved        int `json:"approved"`
	Total           int `json:"total"`
}

// ComplianceRow is one group (line/category/module/employee) of the report.
type ComplianceRow struct {
	GroupID   string       `json:"groupId"`
	GroupName string       `json:"groupName"`
	Counts    StatusCounts `json:"counts"`
}

// ComplianceReport is the full rollup payload.
type ComplianceReport struct {
	GroupBy string          `json:"groupBy"`
	Overall StatusCounts    `json:"overall"`
	Rows    []ComplianceRow `json:"rows"`
}

// TrendPoint is one month of the completion trend series.
type TrendPoint struct {
	Month       string `json:"month"`
	Completions int    `json:"completions"`
	Signoffs    int    `json:"signoffs"`
}

// ExportRequest selects report content and output format.
type ExportRequest struct {
	GroupBy string `json:"group_by" validate:"omitempty,oneof=line category module employee"`
	Format  string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResponse returns the signed download link for a rendered report.
type ExportResponse struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	Format    string `json:"format"`
	ExpiresAt string `json:"expires_at"`
}
