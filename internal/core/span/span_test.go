package span

import (
	"testing"
)

func TestSlice(t *testing.T) {
	src := "<div title=\"hello\"></div>"
	s := New("a.html", 12, 17)
	if got := s.Slice(src); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestContains(t *testing.T) {
	s := New("a.html", 4, 9)
	if !s.Contains(4) || !s.Contains(8) {
		t.Error("expected boundary offsets to be contained")
	}
	if s.Contains(9) {
		t.Error("end offset is exclusive")
	}
	other := New("b.html", 5, 6)
	if s.ContainsSpan(other) {
		t.Error("spans of different files are never comparable")
	}
}

func TestExprIdStability(t *testing.T) {
	a := ExprIdFor("hash1", 10, 14, "IsProperty", "name")
	b := ExprIdFor("hash1", 10, 14, "IsProperty", "name")
	if a != b {
		t.Fatalf("identical tuples must share an id: %s vs %s", a, b)
	}

	variants := []ExprId{
		ExprIdFor("hash2", 10, 14, "IsProperty", "name"),
		ExprIdFor("hash1", 11, 14, "IsProperty", "name"),
		ExprIdFor("hash1", 10, 15, "IsProperty", "name"),
		ExprIdFor("hash1", 10, 14, "IsFunction", "name"),
		ExprIdFor("hash1", 10, 14, "IsProperty", "other"),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("variant %d should differ from base id", i)
		}
	}
}

func TestHasherLabeling(t *testing.T) {
	a := NewHasher().Field("x", "ab").Field("y", "c").Sum()
	b := NewHasher().Field("x", "a").Field("y", "bc").Sum()
	if a == b {
		t.Error("labeled fields must not collide across boundaries")
	}
}

func TestNodeIdFor(t *testing.T) {
	if got := NodeIdFor([]int{0, 2, 1}); got != "n0.2.1" {
		t.Errorf("unexpected node id %s", got)
	}
	if got := NodeIdFor(nil); got != "n" {
		t.Errorf("unexpected root node id %s", got)
	}
}
