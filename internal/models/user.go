package models

import "time"

// Role represents the single capability class assigned to an identity.
// Roles are mutually exclusive, assigned at creation and immutable.
type Role string

const (
	RoleStudent      Role = "student"
	RoleClassTeacher Role = "class_teacher"
	RoleHOD          Role = "hod"
	RolePrincipal    Role = "principal"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleClassTeacher, RoleHOD, RolePrincipal:
		return true
	}
	return false
}

// IsStaff reports whether the role sits on the approval chain.
func (r Role) IsStaff() bool {
	return r == RoleClassTeacher || r == RoleHOD || r == RolePrincipal
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
