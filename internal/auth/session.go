package auth

// Profile holds the shipping-relevant user fields. Orders denormalize a copy
// of these at checkout so later edits never rewrite history.
type Profile struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// Session is the acting principal plus its rights. The zero value is not
// meaningful; use Anonymous for the unauthenticated state.
//
// Every consumer must treat an unresolved or failed session lookup as
// Anonymous — access is fail-closed, never optimistic.
type Session struct {
	PrincipalID   string  `json:"principalId"`
	Email         string  `json:"email"`
	Role          Role    `json:"role"`
	Profile       Profile `json:"profile"`
	Authenticated bool    `json:"authenticated"`
}

// Anonymous is the session of a visitor with no valid credential.
var Anonymous = Session{Role: RoleGuest}

// CartKey identifies which cart in the cart manager belongs to this session.
// Authenticated principals get a stable key; anonymous visitors supply their
// own client-generated token instead.
func (s Session) CartKey(fallback string) string {
	if s.Authenticated {
		return s.PrincipalID
	}
	return fallback
}
