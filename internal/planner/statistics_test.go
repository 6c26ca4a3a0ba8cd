package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
)

func TestEstimatedDescendantsWellKnown(t *testing.T) {
	s := New()
	require.Equal(t, 400_000, s.EstimatedDescendants(ClinicalFinding))
	require.Equal(t, 50_000, s.EstimatedDescendants(BodyStructure))
}

func TestEstimatedDescendantsUnknown(t *testing.T) {
	s := New()
	require.Equal(t, defaultDescendantEstimate, s.EstimatedDescendants(12345))
}

func TestEstimatedSelf(t *testing.T) {
	s := New()
	require.Equal(t, 1, s.EstimatedSelf(12345))
}

func TestEstimatedAncestors(t *testing.T) {
	s := New()
	require.Equal(t, avgHierarchyDepth, s.EstimatedAncestors(12345))
}

func TestEstimatedAnd(t *testing.T) {
	s := New()
	result := s.EstimatedAnd(1000, 500)
	require.LessOrEqual(t, result, 500)
	require.Greater(t, result, 0)
}

func TestEstimatedOr(t *testing.T) {
	s := New()
	result := s.EstimatedOr(1000, 500)
	require.GreaterOrEqual(t, result, 1000)
	require.LessOrEqual(t, result, 1500)
}

func TestEstimatedMinus(t *testing.T) {
	s := New()
	result := s.EstimatedMinus(1000, 500)
	require.LessOrEqual(t, result, 1000)
	require.Greater(t, result, 0)
}

func TestCostCalculationsArePositive(t *testing.T) {
	s := New()
	require.Greater(t, s.CostDescendants(1000), 0.0)
	require.Greater(t, s.CostAncestors(100), 0.0)
	require.Greater(t, s.CostLookup(), 0.0)
}

func TestIsLargeTraversal(t *testing.T) {
	s := New()
	require.False(t, s.IsLargeTraversal(50_000))
	require.True(t, s.IsLargeTraversal(150_000))
}

func TestRegisterCounts(t *testing.T) {
	s := New()
	s.RegisterDescendantCount(99999, 5000)
	require.Equal(t, 5000, s.EstimatedDescendants(99999))

	s.RegisterChildCount(88888, 25)
	require.Equal(t, 25, s.EstimatedChildren(88888))
}

func TestWithCustomCounts(t *testing.T) {
	s := WithCounts(map[ast.ConceptId]int{11111: 1000, 22222: 2000})
	require.Equal(t, 1000, s.EstimatedDescendants(11111))
	require.Equal(t, 2000, s.EstimatedDescendants(22222))
	require.Equal(t, defaultDescendantEstimate, s.EstimatedDescendants(33333))
}

func TestEstimatedChildrenWithCache(t *testing.T) {
	s := New()
	require.Equal(t, avgChildrenPerConcept, s.EstimatedChildren(12345))

	s.RegisterChildCount(12345, 10)
	require.Equal(t, 10, s.EstimatedChildren(12345))
}
