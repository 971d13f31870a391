package escrow

// Role is the global role of an acting principal
type Role = string

const (
	// RoleUser is a regular marketplace user (seller or buyer)
	RoleUser Role = "user"
	// RoleAdmin moderates escrows: confirms payments, releases funds, resolves holds
	RoleAdmin Role = "admin"
)

// Actor identifies who requested a transition. An empty ID means the
// request was not authenticated.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Authenticated reports whether the actor carries an identifier
func (a Actor) Authenticated() bool {
	return a.ID != ""
}
