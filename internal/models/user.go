package models

import "time"

// Role represents the fixed institutional roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePrincipal Role = "principal"
	RoleHOD       Role = "hod"
	RoleFaculty   Role = "faculty"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RolePrincipal, RoleHOD, RoleFaculty}

// Valid reports whether the role is one of the fixed variants.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePrincipal, RoleHOD, RoleFaculty:
		return true
	}
	return false
}

// RequiresDepartment reports whether the role is department-scoped.
func (r Role) RequiresDepartment() bool {
	return r == RoleHOD || r == RoleFaculty
}

// Departments is the closed set of department codes. Report shapes
// iterate this list so departments with zero users still yield rows.
var Departments = []string{"CSE", "IT", "ECE", "EEE", "MECH", "CIVIL", "BIOMEDICAL", "MTECH CSE"}

// ValidDepartment reports whether dept is a known department code.
func ValidDepartment(dept string) bool {
	for _, d := range Departments {
		if d == dept {
			return true
		}
	}
	return false
}

// User represents an application user stored in the users table.
// Verified is false for seeded demo accounts, which can never log in.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	Department   *string   `db:"department" json:"department,omitempty"`
	Active       bool      `db:"active" json:"active"`
	Verified     bool      `db:"verified" json:"verified"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentOrEmpty returns the department code or "".
func (u *User) DepartmentOrEmpty() string {
	if u.Department == nil {
		return ""
	}
	return *u.Department
}

// CreateUserRequest is the admin-side account creation payload.
type CreateUserRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       Role   `json:"role" validate:"required,oneof=admin principal hod faculty"`
	Department string `json:"department"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role       *Role
	Department *string
	Active     *bool
	Search     string
	Page       int
	PageSize   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
