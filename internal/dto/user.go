package dto

// CreateUserRequest provisions a new account. The temporary password is
// generated server-side and emailed to the user.
type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" validate:"required,min=1,max=100"`
	Role      string `json:"role" validate:"omitempty,oneof=EMPLOYEE SUPERVISOR MANAGER ADMIN"`
}

// UpdateUserRequest modifies profile fields and role.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=100"`
	Role      *string `json:"role,omitempty" validate:"omitempty,oneof=EMPLOYEE SUPERVISOR MANAGER ADMIN"`
	Active    *bool   `json:"active,omitempty"`
}

// ListUsersRequest carries list filters from the query string.
type ListUsersRequest struct {
	Role      string `form:"role" validate:"omitempty,oneof=EMPLOYEE SUPERVISOR MANAGER ADMIN"`
	Active    *bool  `form:"active"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
}
