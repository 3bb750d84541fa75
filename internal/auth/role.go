package auth

// Role is the closed authorization enum. Anything outside these three values
// parses to RoleGuest, so a corrupted or foreign-written role record can only
// ever reduce privileges, never widen them.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored role string onto the enum, defaulting to guest.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser:
		return RoleUser
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleGuest
	}
}

func (r Role) String() string { return string(r) }

// IsAdmin reports whether the role grants administrative rights.
func (r Role) IsAdmin() bool { return r == RoleAdmin }
