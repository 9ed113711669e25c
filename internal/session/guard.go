package session

// Decision is the outcome of a route guard.
type Decision int

const (
	// Allow renders the protected view.
	Allow Decision = iota
	// Wait renders a loading indicator; the startup validation is pending.
	Wait
	// RedirectLogin sends the user to the login view.
	RedirectLogin
	// Deny renders AdminRequiredMessage in place of the view.
	Deny
)

// AdminRequiredMessage is shown when a signed-in user lacks admin rights.
const AdminRequiredMessage = "Admin privileges required"

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect-login"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// RequireAuth guards views that need any signed-in user.
func RequireAuth(s Snapshot) Decision {
	if s.Loading {
		return Wait
	}
	if !s.IsAuthenticated() {
		return RedirectLogin
	}
	return Allow
}

// RequireAdmin guards views restricted to superusers.
func RequireAdmin(s Snapshot) Decision {
	if d := RequireAuth(s); d != Allow {
		return d
	}
	if !s.User.IsSuperuser {
		return Deny
	}
	return Allow
}
