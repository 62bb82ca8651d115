// Package regexcache implements the regex engine collaborator of
// spec.md §6.2 and the LRU cache of spec.md §4.7. It wraps
// github.com/coregx/coregex, whose meta-engine supports POSIX
// leftmost-longest matching (Engine.SetLongest) — the semantics AWK's
// `~`, `match`, `split`, `sub`, and `gsub` require and that Go's
// stdlib regexp (leftmost-first only) does not provide.
package regexcache

import (
	"github.com/coregx/coregex/meta"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Regex is a compiled pattern, ready to test or locate matches against
// a byte-string haystack.
type Regex struct {
	engine  *meta.Engine
	pattern string
}

// Matches reports whether the pattern matches anywhere in hay.
func (r *Regex) Matches(hay []byte) bool {
	return r.engine.IsMatch(hay)
}

// Find returns the (start, length) of the first match in hay, or
// ok=false if there is none — the find(regex, hay) -> Option<(start,
// len)> contract of spec.md §6.2.
func (r *Regex) Find(hay []byte) (start, length int, ok bool) {
	m := r.engine.Find(hay)
	if m == nil {
		return 0, 0, false
	}
	s, e := m.Start(), m.End()
	return s, e - s, true
}

// Pattern returns the source byte string the regex was compiled from.
func (r *Regex) Pattern() string { return r.pattern }

// Cache is a bounded LRU of compiled patterns keyed by source byte
// string (spec.md §4.7). Two identical source strings yield the same
// compiled Regex; eviction releases the evicted engine's native
// resources.
type Cache struct {
	lru *lru.Cache[string, *Regex]
}

// New creates a regex cache holding up to capacity compiled patterns.
func New(capacity int) (*Cache, error) {
	c := &Cache{}
	evicted, err := lru.NewWithEvict[string, *Regex](capacity, func(_ string, r *Regex) {
		// coregex engines own native buffers internally; dropping the
		// last reference here is sufficient for the GC to reclaim them.
		_ = r
	})
	if err != nil {
		return nil, err
	}
	c.lru = evicted
	return c, nil
}

// Get returns the cached compiled Regex for pattern, compiling and
// inserting it on first sight. AWK regex matching is POSIX
// leftmost-longest, so every compiled engine is configured that way.
func (c *Cache) Get(pattern string) (*Regex, error) {
	if r, ok := c.lru.Get(pattern); ok {
		return r, nil
	}
	engine, err := meta.Compile(pattern)
	if err != nil {
		return nil, err
	}
	engine.SetLongest(true)
	r := &Regex{engine: engine, pattern: pattern}
	c.lru.Add(pattern, r)
	return r, nil
}

// Len reports the number of compiled patterns currently cached.
func (c *Cache) Len() int { return c.lru.Len() }
