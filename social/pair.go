package social

// Canonical orders two user IDs into their canonical (low, high) form so an
// unordered relationship has exactly one storage representation.
// Pure and symmetric: Canonical(a, b) == Canonical(b, a).
func Canonical(a, b string) (low, high string) {
	if b < a {
		return b, a
	}
	return a, b
}

// UserChannel is the pub/sub channel carrying notification events for a user.
func UserChannel(userID string) string {
	return "user:" + userID
}
