package models

// Role is the access level of a user account
type Role int

// Role constants
const (
	RoleUser  Role = 1
	RoleAdmin Role = 2
)

// IsAdmin reports whether the role grants admin rights
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// String returns a human readable role name
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// RoleFromAdminFlag maps the "is admin" checkbox of the admin forms to a Role
func RoleFromAdminFlag(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// User represents a user in the system
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // Never serialize password hash
	Role         Role   `json:"role"`
}

// UserUpdate holds the optional fields of a user update.
// Nil fields are left untouched.
type UserUpdate struct {
	Role         *Role
	PasswordHash *string
}

// UserListItem represents a user row of the admin dashboard
type UserListItem struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	IsAdmin  bool   `json:"isAdmin"`
}

// CreateUserRequest represents the admin "create user" form
type CreateUserRequest struct {
	Username string
	Password string
	Role     Role
}

// UpdateUserRequest represents the admin "update user" form.
// Password is optional, an empty value keeps the current one.
type UpdateUserRequest struct {
	Role     Role
	Password string
}
