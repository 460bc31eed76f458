// AngelaMos | 2026
// access.go

// Package access decides whether a caller may see a class of routes and,
// when not, where the client should send them instead.
package access

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusSuspended = "suspended"

	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	PathAuth      = "/auth"
	PathPending   = "/pending"
	PathSuspended = "/suspended"
	PathHome      = "/"
)

type RouteClass int

const (
	// Public routes need no session.
	Public RouteClass = iota
	// Gate routes are the landing pages a blocked account is sent to.
	Gate
	// Member routes require an approved account.
	Member
	// Admin routes require an approved account holding the admin role.
	Admin
)

func (c RouteClass) String() string {
	switch c {
	case Public:
		return "public"
	case Gate:
		return "gate"
	case Member:
		return "member"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

type Subject struct {
	Authenticated bool
	AccountStatus string
	Role          string
}

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonPending         Reason = "account_pending"
	ReasonSuspended       Reason = "account_suspended"
	ReasonRejected        Reason = "account_rejected"
	ReasonNotAdmin        Reason = "admin_required"
	ReasonUnknownStatus   Reason = "account_status_unknown"
)

type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
	Reason   Reason `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(redirect string, reason Reason) Decision {
	return Decision{Redirect: redirect, Reason: reason}
}

// Decide evaluates the guard chain in order: session, account status,
// then role.
func Decide(s Subject, class RouteClass) Decision {
	if class == Public {
		return allow()
	}

	if !s.Authenticated {
		return deny(PathAuth, ReasonUnauthenticated)
	}

	if class == Gate {
		return allow()
	}

	switch s.AccountStatus {
	case StatusApproved:
	case StatusPending:
		return deny(PathPending, ReasonPending)
	case StatusSuspended:
		return deny(PathSuspended, ReasonSuspended)
	case StatusRejected:
		return deny(PathAuth, ReasonRejected)
	default:
		// Stored statuses are constrained, so anything else is a broken session.
		return deny(PathAuth, ReasonUnknownStatus)
	}

	if class == Admin && s.Role != RoleAdmin {
		return deny(PathHome, ReasonNotAdmin)
	}

	return allow()
}

type Route struct {
	Path  string     `json:"path"`
	Class RouteClass `json:"-"`
	Label string     `json:"label"`
}

// ClientRoutes is the route table of the admin portal front end.
var ClientRoutes = []Route{
	{Path: PathAuth, Class: Public, Label: "auth"},
	{Path: PathPending, Class: Gate, Label: "pending"},
	{Path: PathSuspended, Class: Gate, Label: "suspended"},
	{Path: PathHome, Class: Member, Label: "dashboard"},
	{Path: "/requests", Class: Member, Label: "requests"},
	{Path: "/contractors", Class: Member, Label: "contractors"},
	{Path: "/reports", Class: Member, Label: "reports"},
	{Path: "/contact", Class: Member, Label: "contact"},
	{Path: "/admin", Class: Admin, Label: "admin"},
	{Path: "/audit-logs", Class: Admin, Label: "audit_logs"},
}

type RouteDecision struct {
	Route
	Decision
}

func Evaluate(s Subject) []RouteDecision {
	out := make([]RouteDecision, 0, len(ClientRoutes))
	for _, r := range ClientRoutes {
		out = append(out, RouteDecision{Route: r, Decision: Decide(s, r.Class)})
	}
	return out
}
