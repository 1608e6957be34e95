package access

import "time"

type DecisionKind int

const (
	Admit DecisionKind = iota
	Redirect
)

// Decision is the outcome of a guard: admit the request or send the client
// to Target.
type Decision struct {
	Kind   DecisionKind
	Target string
}

func (d Decision) Admitted() bool {
	return d.Kind == Admit
}

func admit() Decision {
	return Decision{Kind: Admit}
}

func redirectTo(target string) Decision {
	return Decision{Kind: Redirect, Target: target}
}

// Decide admits identity to a resource that requires role. Anonymous and
// expired callers go to the login page; callers holding another role go to
// their own dashboard.
func Decide(identity *Identity, required Role, now time.Time) Decision {
	if identity == nil {
		return redirectTo(LoginPath)
	}
	if identity.Expired(now) {
		return redirectTo(LoginPath)
	}
	if identity.Role != required {
		return redirectTo(identity.Role.Dashboard())
	}
	return admit()
}

// Guard is a composable admission check.
type Guard func(identity *Identity, now time.Time) Decision

// RequireRole builds the guard for a single role.
func RequireRole(role Role) Guard {
	return func(identity *Identity, now time.Time) Decision {
		return Decide(identity, role, now)
	}
}

// All runs guards in order and returns the first non-admitting decision.
func All(guards ...Guard) Guard {
	return func(identity *Identity, now time.Time) Decision {
		for _, g := range guards {
			if d := g(identity, now); !d.Admitted() {
				return d
			}
		}
		return admit()
	}
}
