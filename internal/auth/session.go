// Package auth defines the session identity passed explicitly into the
// visit lifecycle.  A session is either a member or a guest; operations
// that require a member take MemberSession directly, so a guest can
// never reach them through any code path.
package auth

// Session is the closed union of caller identities.  Only
// MemberSession and GuestSession implement it.
type Session interface {
	sessionKind() string
}

// MemberSession identifies an authenticated member.
type MemberSession struct {
	UserID uint64
	Role   string
}

func (MemberSession) sessionKind() string { return "member" }

// GuestSession is an unauthenticated browser of public data.  Guests
// have no active-visit concept: clients pin them to "no active visit"
// without querying the backend.
type GuestSession struct{}

func (GuestSession) sessionKind() string { return "guest" }

// Member extracts the member identity from a session.  The second
// return is false for guests.
func Member(s Session) (MemberSession, bool) {
	m, ok := s.(MemberSession)
	return m, ok
}
