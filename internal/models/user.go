package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStaff    UserRole = "STAFF"
	RoleDeskHead UserRole = "DESK_HEAD"
	RoleLEO      UserRole = "LEO"
	RoleAdmin    UserRole = "ADMIN"
)

// User represents an application user stored in the users table.
type User struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	Role       UserRole  `db:"role" json:"role"`
	Department string    `db:"department" json:"department"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID          string   `json:"id"`
	Role        UserRole `json:"role"`
	DisplayName string   `json:"displayName"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
