// Package closure precomputes the transitive IS-A ancestor and descendant
// sets of every concept in a backend snapshot with a single topological
// pass per direction, then serves hierarchy queries as O(1) dense bitset
// lookups instead of repeated graph traversal.
package closure

import (
	"context"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/bits-and-blooms/bloom/v3"

	log "github.com/snomedtools/goecl/internal/logging"
	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/backend"
	"github.com/snomedtools/goecl/pkg/ecl/conceptset"
)

const bloomFalsePositiveRate = 0.001

// index maps the snapshot's concept ids to the dense ordinals the bitsets
// are addressed by. It implements conceptset.Ordinals.
type index struct {
	byId  map[ast.ConceptId]int
	order []ast.ConceptId
}

func (ix *index) Ordinal(id ast.ConceptId) (int, bool) {
	i, ok := ix.byId[id]
	return i, ok
}

func (ix *index) Concept(ordinal int) ast.ConceptId { return ix.order[ordinal] }
func (ix *index) Size() int                          { return len(ix.order) }

// Closure is a backend.Backend that answers hierarchy queries from a
// precomputed snapshot. Every non-hierarchy method is promoted straight
// through to the source backend it was built from, per base spec §4.4
// ("non-hierarchy operations ... delegate to a retained reference to the
// source backend").
type Closure struct {
	backend.Backend

	ix         *index
	ancestors  []*bitset.BitSet
	descendants []*bitset.BitSet
	present    *bloom.BloomFilter
}

// Build constructs a Closure snapshot of source. It performs two full
// topological passes over source's concept graph: one building
// descendants bottom-up from leaves, one building ancestors top-down from
// roots. Either pass degrades gracefully (logging a warning and leaving
// the affected concepts' sets incomplete) if source's IS-A graph turns out
// not to be acyclic, since the capability contract does not let this
// package reject a misbehaving backend outright.
func Build(ctx context.Context, source backend.Backend) (*Closure, error) {
	ix := &index{byId: make(map[ast.ConceptId]int)}
	for id := range source.AllConceptIds() {
		ix.byId[id] = len(ix.order)
		ix.order = append(ix.order, id)
	}

	n := len(ix.order)
	log.Debug().Int("concepts", n).Msg("closure build starting")

	children := make([][]int, n)
	parents := make([][]int, n)
	for i, id := range ix.order {
		for _, c := range source.GetChildren(id) {
			if ci, ok := ix.byId[c]; ok {
				children[i] = append(children[i], ci)
			}
		}
		for _, p := range source.GetParents(id) {
			if pi, ok := ix.byId[p]; ok {
				parents[i] = append(parents[i], pi)
			}
		}
	}

	descendants, err := buildBottomUp(ctx, n, children, parents)
	if err != nil {
		return nil, err
	}
	ancestors, err := buildBottomUp(ctx, n, parents, children)
	if err != nil {
		return nil, err
	}

	filter := bloom.NewWithEstimates(uint(max(n, 1)), bloomFalsePositiveRate)
	for _, id := range ix.order {
		filter.Add(conceptIdBytes(id))
	}

	log.Debug().Int("concepts", n).Msg("closure build done")

	return &Closure{
		Backend:     source,
		ix:          ix,
		ancestors:   ancestors,
		descendants: descendants,
		present:     filter,
	}, nil
}

// buildBottomUp computes, for every node i, the transitive closure of
// downward (by downward) edges, excluding i itself: downward[i] gives i's
// direct edges, upward[i] gives the edges pointing back at i (used to
// discover when a node's dependents have all been processed). Passing
// (children, parents) computes descendants; passing (parents, children)
// computes ancestors.
func buildBottomUp(ctx context.Context, n int, downward, upward [][]int) ([]*bitset.BitSet, error) {
	sets := make([]*bitset.BitSet, n)
	remaining := make([]int, n)
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		remaining[i] = len(downward[i])
		if remaining[i] == 0 {
			queue = append(queue, i)
		}
	}

	processed := 0
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("closure build: %w", err)
		}

		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		processed++

		set := bitset.New(uint(n))
		for _, d := range downward[i] {
			set.Set(uint(d))
			set.InPlaceUnion(sets[d])
		}
		sets[i] = set

		for _, u := range upward[i] {
			remaining[u]--
			if remaining[u] == 0 {
				queue = append(queue, u)
			}
		}
	}

	if processed != n {
		log.Warn().Int("processed", processed).Int("total", n).
			Msg("closure build found a cycle in the IS-A graph; affected concepts' sets are incomplete")
		for i := 0; i < n; i++ {
			if sets[i] == nil {
				sets[i] = bitset.New(uint(n))
			}
		}
	}

	return sets, nil
}

// Ancestors returns id's transitive IS-A ancestors, excluding id, as a
// dense Set addressed by this Closure's ordinal index.
func (c *Closure) Ancestors(id ast.ConceptId) conceptset.Set {
	i, ok := c.ix.Ordinal(id)
	if !ok {
		return conceptset.Empty()
	}
	return conceptset.WrapDense(c.ix, c.ancestors[i])
}

// Descendants returns id's transitive IS-A descendants, excluding id, as a
// dense Set addressed by this Closure's ordinal index.
func (c *Closure) Descendants(id ast.ConceptId) conceptset.Set {
	i, ok := c.ix.Ordinal(id)
	if !ok {
		return conceptset.Empty()
	}
	return conceptset.WrapDense(c.ix, c.descendants[i])
}

// PossiblyContains is a fast negative pre-check: false means id is
// definitely not part of this snapshot, true means it might be (the
// caller must still confirm with an exact lookup). Nothing in this module
// calls it; the hierarchy methods look ids up in the dense index directly.
func (c *Closure) PossiblyContains(id ast.ConceptId) bool {
	return c.present.Test(conceptIdBytes(id))
}

// Size returns the number of concepts in the snapshot.
func (c *Closure) Size() int { return c.ix.Size() }

func conceptIdBytes(id ast.ConceptId) []byte {
	b := make([]byte, 8)
	v := uint64(id)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
