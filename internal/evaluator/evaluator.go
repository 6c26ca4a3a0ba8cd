// Package evaluator folds a parsed ECL expression down to a concept-ID set
// against a caller-supplied backend.Backend, post-order on the AST exactly
// as base spec §4.3 describes: hierarchy traversal, wildcard materialization,
// memberOf, attribute refinement, dot navigation, top/bottom-of-set, and
// filter application. The fold itself is a single-threaded walk per base
// spec §5 ("every public operation runs to completion or fails"); Compound
// and attribute-refinement candidate checks may fan out internally via
// bounded goroutines, but every fan-out is joined before Evaluate returns,
// so callers only ever observe one atomically-completing operation.
package evaluator

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/snomedtools/goecl/internal/planner"
	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/backend"
	"github.com/snomedtools/goecl/pkg/ecl/closure"
	"github.com/snomedtools/goecl/pkg/ecl/conceptset"
	"github.com/snomedtools/goecl/pkg/ecl/eclerrors"
)

// Limits bounds a single Evaluate call's resource usage, per base spec §5.
type Limits struct {
	// MaxResultSize fails the query with a ResourceError once a wildcard
	// materialization, a hierarchy operator's result, or the final result
	// set exceeds this many members. Other intermediate sets are not
	// checked. Zero means unbounded.
	MaxResultSize int

	// RefinementConcurrency bounds how many candidate concepts a single
	// attribute refinement checks in parallel. Zero means sequential.
	RefinementConcurrency int
}

// DefaultLimits is a conservative starting point: a refinement checks
// candidates with modest parallelism and no result-size cap.
func DefaultLimits() Limits {
	return Limits{RefinementConcurrency: 8}
}

// Evaluator interprets ast.Expression trees against a fixed backend. It
// holds the backend by shared reference, per base spec §4.1/§5: all backend
// operations it calls must be concurrency-safe for reads, and Evaluator
// itself carries no mutable state besides a single query's visited counter.
type Evaluator struct {
	backend backend.Backend
	stats   *planner.Statistics
	limits  Limits

	// closure is backend re-asserted as *closure.Closure when possible, so
	// hierarchy operations can short-circuit to a direct bitset lookup
	// instead of a traversal. Nil when backend is not a closure snapshot.
	closure *closure.Closure
}

// New returns an Evaluator over b. If b is a *closure.Closure, hierarchy
// operations use its precomputed ancestor/descendant sets directly; any
// other backend.Backend is walked with get_children/get_parents.
func New(b backend.Backend, limits Limits) *Evaluator {
	e := &Evaluator{backend: b, stats: planner.New(), limits: limits}
	if c, ok := b.(*closure.Closure); ok {
		e.closure = c
	}
	return e
}

// visited counts concepts touched while evaluating one query, for
// result.Stats. It is created fresh per top-level Evaluate call and shared
// by every goroutine a Compound or refinement fan-out spawns, so add must
// be safe for concurrent callers.
type visitCounter struct{ n atomic.Int64 }

func (v *visitCounter) add(n int) { v.n.Add(int64(n)) }

// evalContext threads the query deadline, the visited counter, and the
// result-size guard through a single Evaluate call's recursive fold.
type evalContext struct {
	ctx     context.Context
	visited *visitCounter
	limits  Limits
}

func (ec *evalContext) checkDeadline() error {
	if err := ec.ctx.Err(); err != nil {
		return eclerrors.NewTimeoutError()
	}
	return nil
}

func (ec *evalContext) checkSize(n int) error {
	if ec.limits.MaxResultSize > 0 && n > ec.limits.MaxResultSize {
		return eclerrors.NewResultTooLargeError(n, ec.limits.MaxResultSize)
	}
	return nil
}

// Evaluate folds expr down to its matching concept set, plus the number of
// concepts the fold visited while computing it (for result.Stats). ctx's
// deadline, if any, is checked at every hierarchy-traversal frontier
// expansion and at every filter iteration per base spec §5.
func (e *Evaluator) Evaluate(ctx context.Context, expr ast.Expression) (conceptset.Set, int64, error) {
	ec := &evalContext{ctx: ctx, visited: &visitCounter{}, limits: e.limits}
	set, err := e.eval(ec, expr)
	if err != nil {
		return nil, ec.visited.n.Load(), err
	}
	if err := ec.checkSize(set.Len()); err != nil {
		return nil, ec.visited.n.Load(), err
	}
	return set, ec.visited.n.Load(), nil
}

// eval is the post-order fold's single dispatch point.
func (e *Evaluator) eval(ec *evalContext, expr ast.Expression) (conceptset.Set, error) {
	if err := ec.checkDeadline(); err != nil {
		return nil, err
	}

	switch node := expr.(type) {
	case ast.Self:
		ec.visited.add(1)
		return conceptset.Of(node.Id), nil

	case ast.AltIdentifier:
		id, ok := e.backend.ResolveAlternateIdentifier(node.Scheme, node.Identifier)
		if !ok {
			return nil, eclerrors.NewLookupError(eclerrors.LookupAlternateIdentifier, node.Scheme+node.Identifier)
		}
		return conceptset.Of(id), nil

	case ast.ConceptSet:
		return conceptset.FromSlice(node.Ids), nil

	case ast.Wildcard:
		return e.evalWildcard(ec)

	case ast.Hierarchy:
		return e.evalHierarchy(ec, node)

	case ast.MemberOf:
		return e.evalMemberOf(ec, node)

	case ast.Compound:
		return e.evalCompound(ec, node)

	case ast.DotNav:
		return e.evalDotNav(ec, node)

	case ast.Refined:
		return e.evalRefined(ec, node)

	case ast.Filtered:
		return e.evalFiltered(ec, node)

	case ast.TopOfSet:
		inner, err := e.eval(ec, node.Inner)
		if err != nil {
			return nil, err
		}
		return e.topOfSet(ec, inner), nil

	case ast.BottomOfSet:
		inner, err := e.eval(ec, node.Inner)
		if err != nil {
			return nil, err
		}
		return e.bottomOfSet(ec, inner), nil

	default:
		return nil, eclerrors.NewUnsupportedFeature(fmt.Sprintf("%T", node))
	}
}

func (e *Evaluator) evalWildcard(ec *evalContext) (conceptset.Set, error) {
	out := conceptset.Empty()
	n := 0
	for id := range e.backend.AllConceptIds() {
		if n%4096 == 0 {
			if err := ec.checkDeadline(); err != nil {
				return nil, err
			}
		}
		out.Insert(id)
		n++
		if err := ec.checkSize(n); err != nil {
			return nil, err
		}
	}
	ec.visited.add(n)
	return out, nil
}

func (e *Evaluator) evalMemberOf(ec *evalContext, node ast.MemberOf) (conceptset.Set, error) {
	refsetIds, err := e.eval(ec, node.Inner)
	if err != nil {
		return nil, err
	}
	out := conceptset.Empty()
	refsetIds.Each(func(refsetId ast.ConceptId) bool {
		for _, member := range e.backend.GetRefsetMembers(refsetId) {
			out.Insert(member)
		}
		return true
	})
	return out, nil
}

// evalCompound dispatches AND/OR/MINUS. Per base spec §8 both operators are
// order-independent in result (AND/OR commute, MINUS has a fixed left
// operand); internal/planner's evaluation-order choice is therefore purely
// an optimization and is applied only to AND/OR.
//
// Wildcard short-circuits per base spec §4.3 ("Operators composed with *
// must short-circuit where possible") are checked against node's original
// operands, before any planner reordering: `*` is the single most expensive
// operand to materialize (the whole backend), so OrderCompoundOperands
// would otherwise always sort it second and the short-circuit would never
// fire.
func (e *Evaluator) evalCompound(ec *evalContext, node ast.Compound) (conceptset.Set, error) {
	_, leftWild := node.Left.(ast.Wildcard)
	_, rightWild := node.Right.(ast.Wildcard)

	switch {
	case node.Op == ast.And && leftWild:
		return e.eval(ec, node.Right)
	case node.Op == ast.And && rightWild:
		return e.eval(ec, node.Left)
	case node.Op == ast.Or && (leftWild || rightWild):
		return e.evalWildcard(ec)
	case node.Op == ast.Minus && leftWild:
		all, err := e.evalWildcard(ec)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(ec, node.Right)
		if err != nil {
			return nil, err
		}
		return all.Subtract(right), nil
	case node.Op == ast.Minus && rightWild:
		// x MINUS * is the empty set: the wildcard absorbs everything x
		// could contain, so there is nothing left to evaluate.
		return conceptset.Empty(), nil
	}

	first, second := node.Left, node.Right
	if node.Op != ast.Minus {
		first, second = e.stats.OrderCompoundOperands(node.Op, node.Left, node.Right)
	}

	left, right, err := e.evalOperandsConcurrently(ec, first, second)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case ast.And:
		return left.Intersect(right), nil
	case ast.Or:
		return left.Union(right), nil
	case ast.Minus:
		// first/second equal left/right unchanged for Minus.
		return left.Subtract(right), nil
	default:
		return nil, eclerrors.NewUnsupportedFeature("unknown compound operator")
	}
}

// evalOperandsConcurrently evaluates two independent sub-expressions via a
// joined, bounded fan-out: the caller never observes partial results, only
// the fully-resolved pair or the first error either branch produced.
func (e *Evaluator) evalOperandsConcurrently(ec *evalContext, left, right ast.Expression) (conceptset.Set, conceptset.Set, error) {
	g, gctx := errgroup.WithContext(ec.ctx)
	var leftSet, rightSet conceptset.Set

	g.Go(func() error {
		set, err := e.eval(&evalContext{ctx: gctx, visited: ec.visited, limits: ec.limits}, left)
		if err != nil {
			return err
		}
		leftSet = set
		return nil
	})
	g.Go(func() error {
		set, err := e.eval(&evalContext{ctx: gctx, visited: ec.visited, limits: ec.limits}, right)
		if err != nil {
			return err
		}
		rightSet = set
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return leftSet, rightSet, nil
}

func (e *Evaluator) evalDotNav(ec *evalContext, node ast.DotNav) (conceptset.Set, error) {
	current, err := e.eval(ec, node.Inner)
	if err != nil {
		return nil, err
	}
	for _, attrExpr := range node.Attrs {
		if err := ec.checkDeadline(); err != nil {
			return nil, err
		}
		attrTypes, err := e.eval(ec, attrExpr)
		if err != nil {
			return nil, err
		}
		next := conceptset.Empty()
		current.Each(func(c ast.ConceptId) bool {
			ec.visited.add(1)
			for _, rel := range e.backend.GetAttributes(c) {
				if matchesAttributeType(attrTypes, rel.AttributeTypeId) {
					next.Insert(rel.DestinationId)
				}
			}
			return true
		})
		current = next
	}
	return current, nil
}

// matchesAttributeType reports whether attrType is a member of the
// attribute-expression set A. A `*` attribute expression reaches here
// already materialized to every id AllConceptIds yields, so it matches
// exactly those ids; a nil A matches nothing.
func matchesAttributeType(attrTypes conceptset.Set, attrType ast.ConceptId) bool {
	if attrTypes == nil {
		return false
	}
	return attrTypes.Contains(attrType)
}

// topOfSet returns the elements of s with no proper ancestor also in s.
func (e *Evaluator) topOfSet(ec *evalContext, s conceptset.Set) conceptset.Set {
	out := conceptset.Empty()
	s.Each(func(c ast.ConceptId) bool {
		if !e.hasAncestorIn(ec, c, s) {
			out.Insert(c)
		}
		return true
	})
	return out
}

// bottomOfSet returns the elements of s with no proper descendant also in s.
func (e *Evaluator) bottomOfSet(ec *evalContext, s conceptset.Set) conceptset.Set {
	out := conceptset.Empty()
	s.Each(func(c ast.ConceptId) bool {
		if !e.hasDescendantIn(ec, c, s) {
			out.Insert(c)
		}
		return true
	})
	return out
}

func (e *Evaluator) hasAncestorIn(ec *evalContext, c ast.ConceptId, s conceptset.Set) bool {
	if e.closure != nil {
		found := false
		e.closure.Ancestors(c).Each(func(a ast.ConceptId) bool {
			if s.Contains(a) {
				found = true
				return false
			}
			return true
		})
		return found
	}
	found := false
	e.walkAncestors(ec, c, func(a ast.ConceptId) bool {
		if s.Contains(a) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (e *Evaluator) hasDescendantIn(ec *evalContext, c ast.ConceptId, s conceptset.Set) bool {
	if e.closure != nil {
		found := false
		e.closure.Descendants(c).Each(func(d ast.ConceptId) bool {
			if s.Contains(d) {
				found = true
				return false
			}
			return true
		})
		return found
	}
	found := false
	e.walkDescendants(ec, c, func(d ast.ConceptId) bool {
		if s.Contains(d) {
			found = true
			return false
		}
		return true
	})
	return found
}

// acquireRefinementSlots returns a semaphore sized by e.limits for bounding
// a refinement's per-candidate concurrency; a zero-valued limit yields a
// semaphore of weight 1, i.e. sequential execution.
func (e *Evaluator) acquireRefinementSlots() *semaphore.Weighted {
	n := e.limits.RefinementConcurrency
	if n <= 0 {
		n = 1
	}
	return semaphore.NewWeighted(int64(n))
}

