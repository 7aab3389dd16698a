package dto

// CreateModuleRequest publishes a new training module.
type CreateModuleRequest struct {
	Title      string `json:"title" validate:"required,min=3,max=200"`
	LineID     string `json:"line_id" validate:"required,uuid4"`
	CategoryID string `json:"category_id" validate:"required,uuid4"`
	Type       string `json:"type" validate:"required,oneof=DOC PPT VIDEO"`
}

// RepublishModuleRequest replaces the material of an existing module. The
// original row stays untouched; a successor row is created at version+1.
type RepublishModuleRequest struct {
	Title string `json:"title" validate:"omitempty,min=3,max=200"`
	Type  string `json:"type" validate:"omitempty,oneof=DOC PPT VIDEO"`
}

// ListModulesRequest carries list filters from the query string.
type ListModulesRequest struct {
	LineID     string `form:"lineId" validate:"omitempty,uuid4"`
	CategoryID string `form:"categoryId" validate:"omitempty,uuid4"`
	Active     *bool  `form:"active"`
	Search     string `form:"search"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}
