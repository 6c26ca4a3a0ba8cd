package conceptset

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
)

func sortedSlice(s Set) []ast.ConceptId {
	out := s.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestSparseUnionIntersectSubtract(t *testing.T) {
	a := Of(1, 2, 3)
	b := Of(2, 3, 4)

	require.Equal(t, []ast.ConceptId{1, 2, 3, 4}, sortedSlice(a.Union(b)))
	require.Equal(t, []ast.ConceptId{2, 3}, sortedSlice(a.Intersect(b)))
	require.Equal(t, []ast.ConceptId{1}, sortedSlice(a.Subtract(b)))
}

func TestSparseEmptyAndContains(t *testing.T) {
	s := Empty()
	require.True(t, s.IsEmpty())
	s.Insert(73211009)
	require.False(t, s.IsEmpty())
	require.True(t, s.Contains(73211009))
	require.False(t, s.Contains(1))
}

type fixedOrdinals struct {
	ids []ast.ConceptId
}

func (f fixedOrdinals) Ordinal(id ast.ConceptId) (int, bool) {
	for i, v := range f.ids {
		if v == id {
			return i, true
		}
	}
	return 0, false
}

func (f fixedOrdinals) Concept(ordinal int) ast.ConceptId { return f.ids[ordinal] }
func (f fixedOrdinals) Size() int                          { return len(f.ids) }

func TestDenseUnionIntersectSubtract(t *testing.T) {
	ord := fixedOrdinals{ids: []ast.ConceptId{1, 2, 3, 4}}
	a := NewDenseFromSlice(ord, []ast.ConceptId{1, 2, 3})
	b := NewDenseFromSlice(ord, []ast.ConceptId{2, 3, 4})

	require.Equal(t, []ast.ConceptId{1, 2, 3, 4}, sortedSlice(a.Union(b)))
	require.Equal(t, []ast.ConceptId{2, 3}, sortedSlice(a.Intersect(b)))
	require.Equal(t, []ast.ConceptId{1}, sortedSlice(a.Subtract(b)))
}

func TestDenseIgnoresIdsOutsideUniverse(t *testing.T) {
	ord := fixedOrdinals{ids: []ast.ConceptId{1, 2}}
	d := NewDenseFromSlice(ord, []ast.ConceptId{1, 999})
	require.Equal(t, 1, d.Len())
	require.False(t, d.Contains(999))
}

func TestDenseAndSparseInteroperateViaSetInterface(t *testing.T) {
	ord := fixedOrdinals{ids: []ast.ConceptId{1, 2, 3}}
	dense := NewDenseFromSlice(ord, []ast.ConceptId{1, 2})
	sp := Of(2, 3)

	require.Equal(t, []ast.ConceptId{1, 2, 3}, sortedSlice(dense.Union(sp)))
	require.Equal(t, []ast.ConceptId{2}, sortedSlice(dense.Intersect(sp)))
}
