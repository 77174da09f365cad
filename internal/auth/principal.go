package auth

// Principal is the resolved identity of a caller. The zero value is the
// anonymous principal.
type Principal struct {
	ID      uint64
	Name    string
	IsAdmin bool
}

// Anonymous is the sentinel returned whenever a credential cannot be
// resolved to a user.
var Anonymous = Principal{}

// IsAuthenticated reports whether the principal resolved to a real user.
func (p Principal) IsAuthenticated() bool {
	return p.ID != 0
}
