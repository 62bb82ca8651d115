// Package array implements the associative array store from spec.md
// §3.3/§4.6: arrays are identified by a dense integer index assigned at
// compile time, and map byte-string keys (subscripts already joined
// with SUBSEP by the caller) to scalar values.
package array

import "goawk-core/internal/value"

// Array is a single associative array, keyed by byte-string subscript.
type Array struct {
	entries map[string]value.Scalar
}

func newArray() *Array {
	return &Array{entries: make(map[string]value.Scalar)}
}

// Store holds every array in a program, indexed by the dense
// GlobalArrayId the compiler assigned. alloc(n) pre-creates n empty
// arrays; every id ever returned to a caller lies in [0, n).
type Store struct {
	arrays []*Array
}

// Alloc pre-creates n empty arrays.
func Alloc(n int) *Store {
	s := &Store{arrays: make([]*Array, n)}
	for i := range s.arrays {
		s.arrays[i] = newArray()
	}
	return s
}

// Grow extends the store to hold at least n arrays, used by the VM
// after initial allocation to materialize a fresh array for each array
// parameter a function call leaves unpassed.
func (s *Store) Grow(n int) {
	for len(s.arrays) < n {
		s.arrays = append(s.arrays, newArray())
	}
}

// Len reports how many arrays the store currently holds.
func (s *Store) Len() int { return len(s.arrays) }

// Access returns the value at key in array id, or (zero, false) if
// absent. It never creates an entry — that is a[k]'s job, not in's.
func (s *Store) Access(id int, key string) (value.Scalar, bool) {
	v, ok := s.arrays[id].entries[key]
	return v, ok
}

// Get returns the value at key in array id, creating an uninitialized
// empty-string entry if absent (AWK's a[k] auto-vivification), and
// returns the prior-or-new value.
func (s *Store) Get(id int, key string) value.Scalar {
	a := s.arrays[id]
	if v, ok := a.entries[key]; ok {
		return v
	}
	v := value.Uninitialized()
	a.entries[key] = v
	return v
}

// Assign inserts or overwrites key in array id, returning the prior
// value if one existed.
func (s *Store) Assign(id int, key string, v value.Scalar) (value.Scalar, bool) {
	a := s.arrays[id]
	prior, had := a.entries[key]
	a.entries[key] = v
	return prior, had
}

// Delete removes key from array id, a no-op if absent.
func (s *Store) Delete(id int, key string) {
	delete(s.arrays[id].entries, key)
}

// Clear drains every entry from array id.
func (s *Store) Clear(id int) {
	s.arrays[id].entries = make(map[string]value.Scalar)
}

// InArray tests membership without creating a ghost entry — this is
// what distinguishes AWK's `(k) in a` from `a[k]`.
func (s *Store) InArray(id int, key string) bool {
	_, ok := s.arrays[id].entries[key]
	return ok
}

// Count reports the number of entries in array id (for the `length`
// builtin applied to an array argument).
func (s *Store) Count(id int) int {
	return len(s.arrays[id].entries)
}

// Keys returns the subscripts of array id. Their order is unspecified
// and can differ from one call to the next, since Go randomizes map
// iteration order on every range; a single `for (k in a)` loop still
// sees one fixed order because it walks one snapshot from one call.
func (s *Store) Keys(id int) []string {
	a := s.arrays[id]
	keys := make([]string, 0, len(a.entries))
	for k := range a.entries {
		keys = append(keys, k)
	}
	return keys
}
