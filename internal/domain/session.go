package domain

// SessionID names the two-party broadcast scope of one pairing. It is derived,
// never stored on its own, so both participants compute the identical value
// without coordination.
type SessionID string

const sessionPrefix = "room-"

// DeriveSessionID is pure and commutative: the two connection ids are ordered
// lexicographically and joined with a fixed separator, so
// DeriveSessionID(a, b) == DeriveSessionID(b, a) for every pair.
func DeriveSessionID(a, b ConnectionID) SessionID {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return SessionID(sessionPrefix + string(lo) + "-" + string(hi))
}
