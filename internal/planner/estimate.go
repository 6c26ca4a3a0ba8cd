package planner

import "github.com/snomedtools/goecl/pkg/ecl/ast"

// Estimate returns a rough result-size estimate for expr, walking it
// top-down without touching a backend. It exists only to feed
// OrderCompoundOperands; it is not a promise about the evaluator's actual
// result count, and the evaluator must never use it to decide whether a
// query is valid or how large its real result is.
func (s *Statistics) Estimate(expr ast.Expression) int {
	switch e := expr.(type) {
	case ast.Self:
		return s.EstimatedSelf(e.Id)
	case ast.AltIdentifier:
		return 1
	case ast.ConceptSet:
		return len(e.Ids)
	case ast.Wildcard:
		return s.EstimatedDescendants(RootConcept)
	case ast.Hierarchy:
		return s.estimateHierarchy(e)
	case ast.MemberOf:
		// A refset's membership count isn't knowable without the backend;
		// treat it like an unknown concept's descendant set.
		return defaultDescendantEstimate
	case ast.Compound:
		left := s.Estimate(e.Left)
		right := s.Estimate(e.Right)
		switch e.Op {
		case ast.And:
			return s.EstimatedAnd(left, right)
		case ast.Or:
			return s.EstimatedOr(left, right)
		case ast.Minus:
			return s.EstimatedMinus(left, right)
		default:
			return left
		}
	case ast.DotNav:
		inner := s.Estimate(e.Inner)
		for range e.Attrs {
			inner *= avgChildrenPerConcept
		}
		return inner
	case ast.Refined:
		// A refinement only narrows its focus.
		return s.Estimate(e.Focus) / 2
	case ast.Filtered:
		// A filter clause only narrows its input.
		return s.Estimate(e.Inner) / 2
	case ast.TopOfSet, ast.BottomOfSet:
		return defaultAncestorEstimate
	default:
		return defaultDescendantEstimate
	}
}

func (s *Statistics) estimateHierarchy(h ast.Hierarchy) int {
	id, isSelf := singleConceptId(h.Inner)
	switch h.Op {
	case ast.DescendantOf, ast.DescendantOrSelf:
		if isSelf {
			return s.EstimatedDescendants(id)
		}
		return defaultDescendantEstimate
	case ast.AncestorOf, ast.AncestorOrSelf:
		if isSelf {
			return s.EstimatedAncestors(id)
		}
		return defaultAncestorEstimate
	case ast.ChildOf, ast.ChildOrSelf:
		if isSelf {
			return s.EstimatedChildren(id)
		}
		return avgChildrenPerConcept
	case ast.ParentOf, ast.ParentOrSelf:
		if isSelf {
			return s.EstimatedParents(id)
		}
		return 2
	default:
		return defaultDescendantEstimate
	}
}

// singleConceptId reports the concept id of expr when it is exactly a bare
// Self reference, which is the only case well-known-concept statistics can
// be looked up against.
func singleConceptId(expr ast.Expression) (ast.ConceptId, bool) {
	self, ok := expr.(ast.Self)
	if !ok {
		return 0, false
	}
	return self.Id, true
}

// OrderCompoundOperands returns left and right reordered so that the
// operand with the smaller Estimate comes first. For AND and OR the result
// is identical either way since both operators are commutative; the
// evaluator still evaluates both operands in full.
//
// MINUS is not commutative, so its operands are returned unchanged: swapping
// them would change the result.
func (s *Statistics) OrderCompoundOperands(op ast.CompoundOp, left, right ast.Expression) (first, second ast.Expression) {
	if op == ast.Minus {
		return left, right
	}
	if s.Estimate(right) < s.Estimate(left) {
		return right, left
	}
	return left, right
}
