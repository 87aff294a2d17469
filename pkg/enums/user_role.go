package enums

import "fmt"

// UserRole is the role tag supplied by the identity provider.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleDirector UserRole = "director"
	UserRoleDocente  UserRole = "docente"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleDirector,
	UserRoleDocente,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanReview reports whether the role may decide request items.
func (r UserRole) CanReview() bool {
	return r == UserRoleAdmin || r == UserRoleDirector
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
