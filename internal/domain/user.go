package domain

import "time"

// Role enumerates the closed set of account roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
	RoleTechnician Role = "technician"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleUser, RoleTechnician}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleTechnician:
		return true
	}
	return false
}

// User is an account: requester, technician or administrator.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
