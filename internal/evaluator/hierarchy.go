package evaluator

import (
	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/conceptset"
	"github.com/snomedtools/goecl/pkg/ecl/eclerrors"
)

// evalHierarchy implements the eight hierarchy operators of base spec
// §4.3. Self is resolved first (a hierarchy operator's inner expression is
// almost always a bare concept reference or set thereof in practice, but
// the grammar allows any expression, so every operator unions over each
// element of the inner set's evaluation).
func (e *Evaluator) evalHierarchy(ec *evalContext, node ast.Hierarchy) (conceptset.Set, error) {
	seeds, err := e.eval(ec, node.Inner)
	if err != nil {
		return nil, err
	}

	out := conceptset.Empty()
	var opErr error
	seeds.Each(func(id ast.ConceptId) bool {
		var part conceptset.Set
		part, opErr = e.evalHierarchyOne(ec, node.Op, id)
		if opErr != nil {
			return false
		}
		part.Each(func(m ast.ConceptId) bool {
			out.Insert(m)
			return true
		})
		if opErr = ec.checkSize(out.Len()); opErr != nil {
			return false
		}
		return true
	})
	if opErr != nil {
		return nil, opErr
	}
	return out, nil
}

func (e *Evaluator) evalHierarchyOne(ec *evalContext, op ast.HierarchyOp, id ast.ConceptId) (conceptset.Set, error) {
	switch op {
	case ast.DescendantOf:
		return e.descendantsOf(ec, id)
	case ast.DescendantOrSelf:
		set, err := e.descendantsOf(ec, id)
		if err != nil {
			return nil, err
		}
		// set may be a closure.Closure-backed Dense sharing the closure's
		// own bitset; Union into a fresh set rather than mutating it with
		// Insert, which would corrupt the closure's snapshot.
		return set.Union(conceptset.Of(id)), nil
	case ast.AncestorOf:
		return e.ancestorsOf(ec, id)
	case ast.AncestorOrSelf:
		set, err := e.ancestorsOf(ec, id)
		if err != nil {
			return nil, err
		}
		return set.Union(conceptset.Of(id)), nil
	case ast.ChildOf:
		ec.visited.add(1)
		return conceptset.FromSlice(e.backend.GetChildren(id)), nil
	case ast.ChildOrSelf:
		ec.visited.add(1)
		return conceptset.FromSlice(e.backend.GetChildren(id)).Insert(id), nil
	case ast.ParentOf:
		ec.visited.add(1)
		return conceptset.FromSlice(e.backend.GetParents(id)), nil
	case ast.ParentOrSelf:
		ec.visited.add(1)
		return conceptset.FromSlice(e.backend.GetParents(id)).Insert(id), nil
	default:
		return nil, eclerrors.NewUnsupportedFeature("unknown hierarchy operator")
	}
}

// descendantsOf is `< id`: every concept reachable from id via repeated
// GetChildren, excluding id. Base spec §4.4 lets this short-circuit to a
// direct closure lookup when the evaluator is running against a
// closure.Closure snapshot.
func (e *Evaluator) descendantsOf(ec *evalContext, id ast.ConceptId) (conceptset.Set, error) {
	if e.closure != nil {
		set := e.closure.Descendants(id)
		ec.visited.add(set.Len())
		return set, nil
	}
	out := conceptset.Empty()
	err := e.walkDescendants(ec, id, func(d ast.ConceptId) bool {
		out.Insert(d)
		return true
	})
	return out, err
}

// ancestorsOf is `> id`: every concept reachable from id via repeated
// GetParents, excluding id.
func (e *Evaluator) ancestorsOf(ec *evalContext, id ast.ConceptId) (conceptset.Set, error) {
	if e.closure != nil {
		set := e.closure.Ancestors(id)
		ec.visited.add(set.Len())
		return set, nil
	}
	out := conceptset.Empty()
	err := e.walkAncestors(ec, id, func(a ast.ConceptId) bool {
		out.Insert(a)
		return true
	})
	return out, err
}

// walkDescendants performs a breadth-first traversal of id's children,
// grandchildren, and so on, calling visit once per distinct descendant
// (never id itself). A visited set defends against SNOMED CT's
// polyhierarchy producing the same descendant via more than one parent
// path, and — should the graph ever turn out not to be acyclic, contrary
// to base spec §9's invariant — against an infinite loop.
func (e *Evaluator) walkDescendants(ec *evalContext, id ast.ConceptId, visit func(ast.ConceptId) bool) error {
	return walkFrontier(ec, id, e.backend.GetChildren, visit)
}

// walkAncestors is walkDescendants's mirror over GetParents.
func (e *Evaluator) walkAncestors(ec *evalContext, id ast.ConceptId, visit func(ast.ConceptId) bool) error {
	return walkFrontier(ec, id, e.backend.GetParents, visit)
}

// walkFrontier expands root's reachable set one level at a time, checking
// the deadline at every frontier expansion per base spec §5.
func walkFrontier(ec *evalContext, root ast.ConceptId, edges func(ast.ConceptId) []ast.ConceptId, visit func(ast.ConceptId) bool) error {
	seen := map[ast.ConceptId]struct{}{root: {}}
	frontier := []ast.ConceptId{root}
	for len(frontier) > 0 {
		if err := ec.checkDeadline(); err != nil {
			return err
		}
		next := make([]ast.ConceptId, 0, len(frontier))
		for _, id := range frontier {
			ec.visited.add(1)
			for _, n := range edges(id) {
				if _, dup := seen[n]; dup {
					continue
				}
				seen[n] = struct{}{}
				if !visit(n) {
					return nil
				}
				next = append(next, n)
			}
		}
		frontier = next
	}
	return nil
}
