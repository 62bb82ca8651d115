// Package symbol implements the symbol interner from spec.md §4.1:
// identifiers are deduplicated so that two symbols compare equal iff
// they share the same underlying pointer. The parser interns every
// identifier; internal/inference and internal/compiler still key their
// tables by Symbol.Name rather than by the *Symbol handle.
package symbol

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Symbol is an interned identifier handle. Equality is pointer equality;
// never compare the Name field across two Symbols to test equality.
type Symbol struct {
	Name string
}

// cacheSize bounds the recent-lookup accelerator named in spec.md §4.1.
const cacheSize = 256

// Interner deduplicates identifier byte strings into *Symbol handles.
type Interner struct {
	table map[string]*Symbol
	// recent accelerates repeat lookups of the same handful of names
	// (loop-local variables, field names reused rule after rule)
	// without touching the backing map.
	recent *lru.Cache[string, *Symbol]
}

// New creates an empty interner.
func New() *Interner {
	recent, err := lru.New[string, *Symbol](cacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which cacheSize never is.
		panic(err)
	}
	return &Interner{
		table:  make(map[string]*Symbol),
		recent: recent,
	}
}

// Intern returns the unique *Symbol for name, creating it on first sight.
func (in *Interner) Intern(name string) *Symbol {
	if sym, ok := in.recent.Get(name); ok {
		return sym
	}
	sym, ok := in.table[name]
	if !ok {
		sym = &Symbol{Name: name}
		in.table[name] = sym
	}
	in.recent.Add(name, sym)
	return sym
}

// Len reports the number of distinct symbols interned so far.
func (in *Interner) Len() int {
	return len(in.table)
}
