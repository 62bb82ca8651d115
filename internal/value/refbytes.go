// Package value implements the tagged scalar value model and the
// reference-counted byte string from spec.md §3.1–3.2: Num/Str/StrNum
// scalars backed by byte strings that are either exclusive (refs == 1,
// writable in place) or shared (refs >= 2, immutable until downgraded).
package value

// buffer is the refcounted backing store of a RefBytes. Strings are
// arbitrary byte sequences: never NUL-terminated, never required to be
// UTF-8, per spec.md §3.2.
type buffer struct {
	data []byte
	refs int
}

// RefBytes is a cheaply-cloneable handle onto a buffer. Cloning bumps
// the refcount in O(1); converting to exclusive ownership is O(1) when
// already unique and O(n) otherwise.
type RefBytes struct {
	buf *buffer
}

// sharedEmpty backs every empty RefBytes. Its refcount is biased so high
// it never reaches zero in practice; it is never placed in an Arena's
// recycle pool, so it is effectively immortal.
var sharedEmpty = &buffer{data: nil, refs: 1 << 30}

// EmptyRefBytes returns a shared handle onto the empty byte string.
func EmptyRefBytes() RefBytes {
	sharedEmpty.refs++
	return RefBytes{buf: sharedEmpty}
}

// NewRefBytes wraps data in a freshly exclusive buffer (refs == 1),
// copying data so the caller's slice may be reused or mutated.
func NewRefBytes(data []byte) RefBytes {
	if len(data) == 0 {
		return EmptyRefBytes()
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return RefBytes{buf: &buffer{data: cp, refs: 1}}
}

// Bytes returns the underlying byte slice. Callers must not mutate it
// unless they hold the only reference (see IsExclusive).
func (r RefBytes) Bytes() []byte {
	if r.buf == nil {
		return nil
	}
	return r.buf.data
}

func (r RefBytes) String() string {
	return string(r.Bytes())
}

// Len reports the byte length of the string.
func (r RefBytes) Len() int {
	if r.buf == nil {
		return 0
	}
	return len(r.buf.data)
}

// IsExclusive reports whether this is the only live handle onto its buffer.
func (r RefBytes) IsExclusive() bool {
	return r.buf != nil && r.buf.refs == 1
}

// Clone bumps the refcount and returns a second handle onto the same
// buffer in O(1); the buffer becomes shared (or stays shared).
func (r RefBytes) Clone() RefBytes {
	if r.buf != nil {
		r.buf.refs++
	}
	return r
}

// Release drops this handle's reference. When the count reaches zero
// the buffer is returned to arena for reuse (if arena is non-nil).
func (r RefBytes) Release(arena *Arena) {
	if r.buf == nil || r.buf == sharedEmpty {
		if r.buf == sharedEmpty {
			r.buf.refs--
		}
		return
	}
	r.buf.refs--
	if r.buf.refs == 0 && arena != nil {
		arena.recycle(r.buf)
	}
}

// ToExclusive returns a handle this caller can mutate in place: itself
// if already unique (O(1)), or a fresh copy-on-write clone (O(n)) when
// shared. The original handle's refcount is decremented in the shared
// case, matching normal move semantics.
func (r RefBytes) ToExclusive() RefBytes {
	if r.buf == nil || r.IsExclusive() {
		return r
	}
	cp := make([]byte, len(r.buf.data))
	copy(cp, r.buf.data)
	r.buf.refs--
	return RefBytes{buf: &buffer{data: cp, refs: 1}}
}

// Arena is a small exclusive-buffer pool (design note in spec.md §9):
// recently-released exclusive buffers are recycled here to amortize
// allocation for short-lived per-record/per-field strings, instead of
// thrashing the Go allocator once per field access.
type Arena struct {
	pool []*buffer
}

const arenaCapacity = 128

// NewArena creates an empty buffer pool.
func NewArena() *Arena {
	return &Arena{pool: make([]*buffer, 0, arenaCapacity)}
}

func (a *Arena) recycle(b *buffer) {
	if len(a.pool) >= arenaCapacity {
		return
	}
	b.data = b.data[:0]
	a.pool = append(a.pool, b)
}

// NewString builds an exclusive RefBytes from data, reusing a pooled
// buffer's backing array when one of sufficient capacity is available.
func (a *Arena) NewString(data []byte) RefBytes {
	if len(data) == 0 {
		return EmptyRefBytes()
	}
	if n := len(a.pool); n > 0 {
		b := a.pool[n-1]
		a.pool = a.pool[:n-1]
		b.data = append(b.data[:0], data...)
		b.refs = 1
		return RefBytes{buf: b}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return RefBytes{buf: &buffer{data: cp, refs: 1}}
}
