// Package result defines what pkg/ecl/engine hands back to a caller: a
// query's matching concept set plus diagnostics about how it was
// computed.
package result

import (
	"sort"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/conceptset"
)

// Set is a query's matching concept set: count, membership, iteration,
// and into-sorted-vector, per base spec §4.5.
type Set struct {
	backing conceptset.Set
}

// NewSet wraps a conceptset.Set as a query result.
func NewSet(backing conceptset.Set) Set {
	return Set{backing: backing}
}

func (s Set) Len() int                  { return s.backing.Len() }
func (s Set) IsEmpty() bool             { return s.backing.IsEmpty() }
func (s Set) Contains(id ast.ConceptId) bool { return s.backing.Contains(id) }

// Each iterates members in an unspecified order, stopping early if fn
// returns false.
func (s Set) Each(fn func(ast.ConceptId) bool) { s.backing.Each(fn) }

// SortedSlice returns every member as a slice sorted in ascending
// ConceptId order.
func (s Set) SortedSlice() []ast.ConceptId {
	out := s.backing.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stats carries diagnostics about how a result was computed: elapsed wall
// time, the number of concepts the evaluator visited while computing it,
// and whether it was served from cache.
type Stats struct {
	// QueryId uniquely identifies this execution, for correlating logs
	// and traces with a specific query.
	QueryId uuid.UUID

	Elapsed       time.Duration
	ConceptsVisited int64
	CacheHits       int64
	CacheMisses     int64
}

// NewStats returns a Stats with a fresh QueryId and zeroed counters.
func NewStats() Stats {
	return Stats{QueryId: uuid.New()}
}

// CacheHitRate returns the fraction of cache lookups that hit, or 0 if no
// lookups occurred.
func (s Stats) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

func (s Stats) String() string {
	return "query " + s.QueryId.String() +
		": elapsed=" + s.Elapsed.String() +
		" visited=" + humanize.Comma(s.ConceptsVisited) +
		" cache=" + humanize.Comma(s.CacheHits) + "/" + humanize.Comma(s.CacheHits+s.CacheMisses)
}
