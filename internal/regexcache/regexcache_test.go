package regexcache

import "testing"

func TestGetCachesByPattern(t *testing.T) {
	c, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r1, err := c.Get("a+b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	r2, err := c.Get("a+b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r1 != r2 {
		t.Errorf("Get with the same pattern twice returned different Regex instances")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMatchesAndFind(t *testing.T) {
	c, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	re, err := c.Get("[0-9]+")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !re.Matches([]byte("abc123")) {
		t.Errorf("Matches(abc123) = false, want true")
	}
	if re.Matches([]byte("abcdef")) {
		t.Errorf("Matches(abcdef) = true, want false")
	}
	start, length, ok := re.Find([]byte("abc123def"))
	if !ok || start != 3 || length != 3 {
		t.Errorf("Find(abc123def) = (%d, %d, %v), want (3, 3, true)", start, length, ok)
	}
}

func TestEvictionBoundsSize(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, p := range []string{"a", "b", "c"} {
		if _, err := c.Get(p); err != nil {
			t.Fatalf("Get(%q): %v", p, err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len() after 3 inserts into a capacity-2 cache = %d, want 2", c.Len())
	}
}
