package array

import (
	"sort"
	"testing"

	"goawk-core/internal/value"
)

func TestAccessGetAssign(t *testing.T) {
	s := Alloc(1)

	if _, ok := s.Access(0, "k"); ok {
		t.Fatalf("Access on empty array should miss")
	}

	got := s.Get(0, "k")
	if got.Kind() != value.KindStrNum || got.ToStringInternal() != "" {
		t.Fatalf("Get auto-vivified entry = %+v, want uninitialized empty StrNum", got)
	}
	if _, ok := s.Access(0, "k"); !ok {
		t.Fatalf("Get should have vivified the entry for later Access")
	}

	prior, had := s.Assign(0, "k", value.Num(42))
	if !had || prior.ToNumber() != 0 {
		t.Fatalf("Assign prior = (%+v, %v), want (uninitialized, true)", prior, had)
	}
	v, ok := s.Access(0, "k")
	if !ok || v.ToNumber() != 42 {
		t.Fatalf("Access after Assign = (%+v, %v), want (42, true)", v, ok)
	}
}

func TestInArrayDoesNotVivify(t *testing.T) {
	s := Alloc(1)
	if s.InArray(0, "missing") {
		t.Fatalf("InArray reported membership for an absent key")
	}
	if s.Count(0) != 0 {
		t.Fatalf("InArray must not create a ghost entry; Count = %d", s.Count(0))
	}
}

func TestDeleteAndClear(t *testing.T) {
	s := Alloc(1)
	s.Assign(0, "a", value.Num(1))
	s.Assign(0, "b", value.Num(2))

	s.Delete(0, "a")
	if s.InArray(0, "a") {
		t.Fatalf("Delete did not remove key")
	}
	if s.Count(0) != 1 {
		t.Fatalf("Count after Delete = %d, want 1", s.Count(0))
	}

	s.Clear(0)
	if s.Count(0) != 0 {
		t.Fatalf("Count after Clear = %d, want 0", s.Count(0))
	}
}

func TestKeysSnapshot(t *testing.T) {
	s := Alloc(1)
	s.Assign(0, "x", value.Num(1))
	s.Assign(0, "y", value.Num(2))
	s.Assign(0, "z", value.Num(3))

	keys := s.Keys(0)
	sort.Strings(keys)
	want := []string{"x", "y", "z"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}
}

func TestGrow(t *testing.T) {
	s := Alloc(1)
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	s.Grow(3)
	if s.Len() != 3 {
		t.Fatalf("Len after Grow(3) = %d, want 3", s.Len())
	}
	s.Assign(2, "k", value.Num(9))
	if v, ok := s.Access(2, "k"); !ok || v.ToNumber() != 9 {
		t.Fatalf("array grown by Grow is not independently usable")
	}
}
