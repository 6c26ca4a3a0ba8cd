package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
)

func TestEstimateDescendantsOfWellKnownConcept(t *testing.T) {
	s := New()
	expr := ast.Hierarchy{Op: ast.DescendantOf, Inner: ast.Self{Id: ClinicalFinding}}
	require.Equal(t, 400_000, s.Estimate(expr))
}

func TestEstimateConceptSetIsItsLength(t *testing.T) {
	s := New()
	expr := ast.ConceptSet{Ids: []ast.ConceptId{1, 2, 3}}
	require.Equal(t, 3, s.Estimate(expr))
}

func TestOrderCompoundOperandsPutsSmallerFirstForAnd(t *testing.T) {
	s := New()
	big := ast.Hierarchy{Op: ast.DescendantOf, Inner: ast.Self{Id: ClinicalFinding}}
	small := ast.ConceptSet{Ids: []ast.ConceptId{1}}

	first, second := s.OrderCompoundOperands(ast.And, big, small)
	require.Equal(t, small, first)
	require.Equal(t, big, second)
}

func TestOrderCompoundOperandsLeavesMinusAlone(t *testing.T) {
	s := New()
	big := ast.Hierarchy{Op: ast.DescendantOf, Inner: ast.Self{Id: ClinicalFinding}}
	small := ast.ConceptSet{Ids: []ast.ConceptId{1}}

	first, second := s.OrderCompoundOperands(ast.Minus, big, small)
	require.Equal(t, big, first)
	require.Equal(t, small, second)
}

func TestOrderCompoundOperandsStableWhenAlreadySmallestFirst(t *testing.T) {
	s := New()
	small := ast.ConceptSet{Ids: []ast.ConceptId{1}}
	big := ast.Hierarchy{Op: ast.DescendantOf, Inner: ast.Self{Id: ClinicalFinding}}

	first, second := s.OrderCompoundOperands(ast.Or, small, big)
	require.Equal(t, small, first)
	require.Equal(t, big, second)
}
