package result

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/conceptset"
)

func TestSetSortedSlice(t *testing.T) {
	s := NewSet(conceptset.Of(404684003, 73211009, 127003000))
	require.Equal(t, []ast.ConceptId{73211009, 127003000, 404684003}, s.SortedSlice())
	require.Equal(t, 3, s.Len())
	require.True(t, s.Contains(73211009))
	require.False(t, s.Contains(1))
}

func TestStatsCacheHitRate(t *testing.T) {
	s := NewStats()
	require.Equal(t, float64(0), s.CacheHitRate())
	s.CacheHits = 3
	s.CacheMisses = 1
	require.Equal(t, 0.75, s.CacheHitRate())
}

func TestStatsStringContainsQueryId(t *testing.T) {
	s := NewStats()
	require.Contains(t, s.String(), s.QueryId.String())
}
