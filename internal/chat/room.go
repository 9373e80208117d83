package chat

// RoomName derives the canonical conversation room for an unordered pair of
// user ids: the ids sorted lexicographically, joined with a separator that
// cannot appear in an id. RoomName(a, b) == RoomName(b, a) for all pairs.
func RoomName(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
