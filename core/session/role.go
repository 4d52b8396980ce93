package session

import "strings"

// Role is one of the three portals a user can reach.
type Role int

const (
	RoleUnknown Role = iota
	RoleStudent
	RoleTeacher
	RoleAdmin
)

// Roles lists the known roles in menu order.
var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

// ParseRole maps a raw role string (as stored in a Session or returned by the backend) to a Role.
// Anything other than student, teacher or admin yields RoleUnknown.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return RoleStudent
	case "teacher":
		return RoleTeacher
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTeacher:
		return "teacher"
	case RoleAdmin:
		return "admin"
	default:
		return ""
	}
}

// Title is the human readable role name.
func (r Role) Title() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleTeacher:
		return "Teacher"
	case RoleAdmin:
		return "Admin"
	default:
		return ""
	}
}

func (r Role) Valid() bool {
	return r != RoleUnknown
}

// Root is the url prefix of the role's portal.
func (r Role) Root() string {
	if !r.Valid() {
		return LoginPath
	}
	return "/" + r.String()
}

// HomePath is the dashboard of the role's portal.
func (r Role) HomePath() string {
	if !r.Valid() {
		return LoginPath
	}
	return r.Root() + "/dashboard"
}
