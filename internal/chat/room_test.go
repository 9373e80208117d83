package chat

import "testing"

// TestRoomNameSymmetric verifies that both orderings of a user pair resolve
// to the same room, so inbound routing and outbound fan-out always agree.
func TestRoomNameSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"b7f9c2d0-1111-4a2b-9c3d-000000000001", "a1e2f3c4-2222-4d5e-8f90-000000000002"},
		{"same", "same"},
	}
	for _, p := range pairs {
		if got, want := RoomName(p[0], p[1]), RoomName(p[1], p[0]); got != want {
			t.Errorf("RoomName(%q, %q) = %q, reversed = %q", p[0], p[1], got, want)
		}
	}
}

// TestRoomNameInjective verifies that distinct unordered pairs never
// collide. The separator cannot occur inside an id, so concatenation
// ambiguity like (a, bc) vs (ab, c) is impossible.
func TestRoomNameInjective(t *testing.T) {
	pairs := [][2]string{
		{"a", "bc"},
		{"ab", "c"},
		{"a", "b"},
		{"b", "c"},
		{"a", "c"},
	}
	seen := make(map[string][2]string)
	for _, p := range pairs {
		room := RoomName(p[0], p[1])
		if prev, dup := seen[room]; dup {
			t.Errorf("pairs %v and %v both map to %q", prev, p, room)
		}
		seen[room] = p
	}
}

// TestRoomNameOrdersLexicographically pins the derivation: ids sorted, then
// joined. Persistence and fan-out both depend on this exact form.
func TestRoomNameOrdersLexicographically(t *testing.T) {
	if got := RoomName("zeta", "alpha"); got != "alpha:zeta" {
		t.Errorf("RoomName(zeta, alpha) = %q, want alpha:zeta", got)
	}
}
