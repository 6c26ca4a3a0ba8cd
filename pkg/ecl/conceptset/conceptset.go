// Package conceptset implements the concept-ID set algebra the evaluator
// folds an ast.Expression down to. Only the algebraic contract is fixed:
// callers hold a Set interface and never depend on which implementation
// backs it. Sparse sets (map-backed) are the default, returned by every
// evaluator operation on arbitrary query results; dense sets (bitset-
// backed) exist for pkg/ecl/closure, where the universe of concepts is
// known ahead of time and bit-parallel union/intersect matter.
package conceptset

import "github.com/snomedtools/goecl/pkg/ecl/ast"

// Set is an immutable-by-convention set of concept IDs. Union, Intersect
// and Subtract return a new Set and never modify their receiver or
// argument; Insert is the one mutating method, reserved for callers
// building a set incrementally before it is handed out.
type Set interface {
	Contains(id ast.ConceptId) bool
	Len() int
	IsEmpty() bool

	// Each calls fn for every member in an unspecified order, stopping
	// early if fn returns false.
	Each(fn func(ast.ConceptId) bool)

	ToSlice() []ast.ConceptId

	Union(other Set) Set
	Intersect(other Set) Set
	Subtract(other Set) Set

	// Insert adds id to the set in place and returns the receiver, to
	// allow chaining during incremental construction.
	Insert(id ast.ConceptId) Set
}

// Empty returns a new, empty sparse Set.
func Empty() Set {
	return &sparse{members: make(map[ast.ConceptId]struct{})}
}

// Of returns a new sparse Set containing exactly ids.
func Of(ids ...ast.ConceptId) Set {
	s := &sparse{members: make(map[ast.ConceptId]struct{}, len(ids))}
	for _, id := range ids {
		s.members[id] = struct{}{}
	}
	return s
}

// FromSlice is an alias for Of, named for call sites converting a
// []ast.ConceptId result into a Set.
func FromSlice(ids []ast.ConceptId) Set {
	return Of(ids...)
}
