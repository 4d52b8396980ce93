package session

// DecisionKind is the outcome of the authorization gate.
type DecisionKind int

const (
	Allow DecisionKind = iota
	RedirectToLogin
	RedirectToRoleHome
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToRoleHome:
		return "redirect_role_home"
	default:
		return "unknown"
	}
}

// Decision is computed on every navigation and never cached.
// Role is only set for RedirectToRoleHome.
type Decision struct {
	Kind DecisionKind
	Role Role
}

// Location is where a redirecting decision sends the browser. Empty for Allow.
func (d Decision) Location() string {
	switch d.Kind {
	case RedirectToLogin:
		return LoginPath
	case RedirectToRoleHome:
		return d.Role.HomePath()
	default:
		return ""
	}
}

// Evaluate decides whether sess may reach a subtree that requires `required`.
//   - no token: RedirectToLogin, whatever the stored role
//   - token but missing or unrecognised role: RedirectToLogin
//   - token and a different role: RedirectToRoleHome(role)
//   - token and the required role: Allow
func Evaluate(sess Session, required Role) Decision {
	if !sess.HasToken() {
		return Decision{Kind: RedirectToLogin}
	}
	role := sess.ParsedRole()
	switch role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		if role != required {
			return Decision{Kind: RedirectToRoleHome, Role: role}
		}
		return Decision{Kind: Allow}
	default:
		return Decision{Kind: RedirectToLogin}
	}
}
