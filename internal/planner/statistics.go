// Package planner estimates the cardinality and execution cost of ECL
// subexpressions and uses those estimates to pick an evaluation order for
// Compound nodes that touches as little of the graph as possible. It never
// changes what a query returns: AND/OR/MINUS are commutative or have a
// fixed left operand regardless of evaluation order, so reordering here is
// purely an optimization, not a semantic choice.
package planner

import "github.com/snomedtools/goecl/pkg/ecl/ast"

// Well-known top-level SNOMED CT hierarchies with pre-computed descendant
// counts, so the planner doesn't have to guess at the cost of e.g. `<
// 404684003` (descendants of Clinical finding).
const (
	ClinicalFinding ast.ConceptId = 404684003
	BodyStructure   ast.ConceptId = 123037004
	Procedure       ast.ConceptId = 71388002
	Substance       ast.ConceptId = 105590001
	Product         ast.ConceptId = 373873005
	QualifierValue  ast.ConceptId = 362981000
	ObservableEntity ast.ConceptId = 363787002
	Event           ast.ConceptId = 272379006
	RootConcept     ast.ConceptId = 138875005
)

// Heuristic constants used when no better estimate is available.
const (
	avgChildrenPerConcept     = 5
	avgHierarchyDepth         = 15
	defaultDescendantEstimate = 100
	defaultAncestorEstimate   = 10

	andSelectivityFactor = 0.3
	minusOverlapFactor   = 0.1

	// LargeTraversalThreshold is the estimated-result-count above which a
	// traversal is flagged as large by IsLargeTraversal.
	LargeTraversalThreshold = 100_000
)

// Relative per-unit cost constants, in arbitrary units roughly calibrated
// against a single concept-id map lookup.
const (
	costConceptLookup       = 0.001
	costSingleLevelTraversal = 0.01
	costDescendantTraversal = 0.001
	costSetIntersection     = 0.0001
	costSetUnion            = 0.00005
	costSetDifference       = 0.0001
)

// Statistics estimates query cardinality and cost for the evaluator's
// planning decisions. Concurrent reads are safe; the two maps
// (wellKnownCounts, childCounts) have no lock, so RegisterDescendantCount
// and RegisterChildCount must not run concurrently with any other method.
type Statistics struct {
	wellKnownCounts map[ast.ConceptId]int
	childCounts     map[ast.ConceptId]int
}

// New returns a Statistics seeded with descendant-count estimates for
// SNOMED CT's major top-level hierarchies.
func New() *Statistics {
	return &Statistics{
		wellKnownCounts: map[ast.ConceptId]int{
			ClinicalFinding:  400_000,
			BodyStructure:    50_000,
			Procedure:        100_000,
			Substance:        50_000,
			Product:          40_000,
			QualifierValue:   15_000,
			ObservableEntity: 20_000,
			Event:            5_000,
			RootConcept:      500_000,
		},
		childCounts: make(map[ast.ConceptId]int),
	}
}

// WithCounts returns a Statistics seeded with caller-supplied descendant
// counts instead of the built-in well-known table, for callers that have
// loaded real counts from a store.
func WithCounts(counts map[ast.ConceptId]int) *Statistics {
	seeded := make(map[ast.ConceptId]int, len(counts))
	for id, n := range counts {
		seeded[id] = n
	}
	return &Statistics{wellKnownCounts: seeded, childCounts: make(map[ast.ConceptId]int)}
}

// EstimatedDescendants estimates how many concepts id has as descendants.
func (s *Statistics) EstimatedDescendants(id ast.ConceptId) int {
	if count, ok := s.wellKnownCounts[id]; ok {
		return count
	}
	if children, ok := s.childCounts[id]; ok {
		if children == 0 {
			return 0
		}
		return children * 10
	}
	return defaultDescendantEstimate
}

// EstimatedAncestors estimates how many concepts id has as ancestors.
// Ancestor counts are bounded by hierarchy depth and don't benefit from a
// well-known table the way descendant counts do.
func (s *Statistics) EstimatedAncestors(ast.ConceptId) int {
	return avgHierarchyDepth
}

// EstimatedSelf is the cardinality of a bare concept reference: always 1.
func (s *Statistics) EstimatedSelf(ast.ConceptId) int { return 1 }

// EstimatedChildren estimates id's direct child count.
func (s *Statistics) EstimatedChildren(id ast.ConceptId) int {
	if count, ok := s.childCounts[id]; ok {
		return count
	}
	return avgChildrenPerConcept
}

// EstimatedParents estimates id's direct parent count. Most SNOMED CT
// concepts have between one and three parents.
func (s *Statistics) EstimatedParents(ast.ConceptId) int { return 2 }

// EstimatedAnd estimates the size of an AND (intersection) of two operands
// of the given estimated sizes.
func (s *Statistics) EstimatedAnd(left, right int) int {
	smaller := left
	if right < smaller {
		smaller = right
	}
	return ceilInt(float64(smaller) * andSelectivityFactor)
}

// EstimatedOr estimates the size of an OR (union) of two operands of the
// given estimated sizes.
func (s *Statistics) EstimatedOr(left, right int) int {
	overlap := s.EstimatedAnd(left, right)
	return left + right - overlap
}

// EstimatedMinus estimates the size of a MINUS (difference) of two operands
// of the given estimated sizes.
func (s *Statistics) EstimatedMinus(left, right int) int {
	smaller := left
	if right < smaller {
		smaller = right
	}
	overlap := ceilInt(float64(smaller) * minusOverlapFactor)
	if overlap > left {
		return 0
	}
	return left - overlap
}

// CostDescendants estimates the execution cost of a descendant traversal
// expected to visit estimatedCount concepts.
func (s *Statistics) CostDescendants(estimatedCount int) float64 {
	return float64(estimatedCount) * costDescendantTraversal
}

// CostAncestors estimates the execution cost of an ancestor traversal
// expected to visit estimatedCount concepts.
func (s *Statistics) CostAncestors(estimatedCount int) float64 {
	return float64(estimatedCount) * costSingleLevelTraversal
}

// CostLookup is the cost of a single concept-id lookup.
func (s *Statistics) CostLookup() float64 { return costConceptLookup }

// CostIntersection estimates the cost of intersecting two sets totalling
// setSize elements.
func (s *Statistics) CostIntersection(setSize int) float64 {
	return float64(setSize) * costSetIntersection
}

// CostUnion estimates the cost of unioning two sets totalling setSize
// elements.
func (s *Statistics) CostUnion(setSize int) float64 {
	return float64(setSize) * costSetUnion
}

// CostDifference estimates the cost of subtracting one set from another
// across setSize total elements.
func (s *Statistics) CostDifference(setSize int) float64 {
	return float64(setSize) * costSetDifference
}

// IsLargeTraversal reports whether estimatedCount exceeds the threshold at
// which a traversal is considered expensive.
func (s *Statistics) IsLargeTraversal(estimatedCount int) bool {
	return estimatedCount > LargeTraversalThreshold
}

// RegisterDescendantCount records an observed (not estimated) descendant
// count for id, so future estimates use it instead of a heuristic.
func (s *Statistics) RegisterDescendantCount(id ast.ConceptId, count int) {
	s.wellKnownCounts[id] = count
}

// RegisterChildCount records an observed direct child count for id.
func (s *Statistics) RegisterChildCount(id ast.ConceptId, count int) {
	s.childCounts[id] = count
}

func ceilInt(f float64) int {
	n := int(f)
	if float64(n) < f {
		n++
	}
	return n
}
