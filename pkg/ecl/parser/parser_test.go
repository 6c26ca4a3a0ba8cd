package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/backend"
)

func TestParseBareConceptReference(t *testing.T) {
	expr, err := Parse("73211009")
	require.NoError(t, err)
	require.Equal(t, ast.Self{Id: 73211009}, expr)
}

func TestParseConceptReferenceWithTerm(t *testing.T) {
	expr, err := Parse("73211009 |Diabetes mellitus|")
	require.NoError(t, err)
	require.Equal(t, ast.Self{Id: 73211009, Term: "Diabetes mellitus"}, expr)
}

func TestParseHierarchyOperators(t *testing.T) {
	cases := map[string]ast.HierarchyOp{
		"< 73211009":   ast.DescendantOf,
		"<< 73211009":  ast.DescendantOrSelf,
		"<! 73211009":  ast.ChildOf,
		"<<! 73211009": ast.ChildOrSelf,
		"> 73211009":   ast.AncestorOf,
		">> 73211009":  ast.AncestorOrSelf,
		">! 73211009":  ast.ParentOf,
		">>! 73211009": ast.ParentOrSelf,
	}
	for src, op := range cases {
		expr, err := Parse(src)
		require.NoError(t, err, src)
		require.Equal(t, ast.Hierarchy{Op: op, Inner: ast.Self{Id: 73211009}}, expr, src)
	}
}

func TestParseWildcard(t *testing.T) {
	expr, err := Parse("*")
	require.NoError(t, err)
	require.Equal(t, ast.Wildcard{}, expr)
}

func TestParseConceptSet(t *testing.T) {
	expr, err := Parse("(73211009 127003000)")
	require.NoError(t, err)
	require.Equal(t, ast.ConceptSet{Ids: []ast.ConceptId{73211009, 127003000}}, expr)
}

func TestParseParenthesizedExpressionIsNotConceptSet(t *testing.T) {
	expr, err := Parse("(73211009 OR 127003000)")
	require.NoError(t, err)
	require.Equal(t, ast.Compound{Op: ast.Or, Left: ast.Self{Id: 73211009}, Right: ast.Self{Id: 127003000}}, expr)
}

func TestParseCompoundPrecedence(t *testing.T) {
	// AND binds tighter than OR: "a OR b AND c" == "a OR (b AND c)".
	expr, err := Parse("73211009 OR 127003000 AND 404684003")
	require.NoError(t, err)
	want := ast.Compound{
		Op:   ast.Or,
		Left: ast.Self{Id: 73211009},
		Right: ast.Compound{
			Op:    ast.And,
			Left:  ast.Self{Id: 127003000},
			Right: ast.Self{Id: 404684003},
		},
	}
	require.Equal(t, want, expr)
}

func TestParseCommaIsAnd(t *testing.T) {
	expr, err := Parse("73211009, 127003000")
	require.NoError(t, err)
	require.Equal(t, ast.Compound{Op: ast.And, Left: ast.Self{Id: 73211009}, Right: ast.Self{Id: 127003000}}, expr)
}

func TestParseMemberOf(t *testing.T) {
	expr, err := Parse("^ 700043003")
	require.NoError(t, err)
	require.Equal(t, ast.MemberOf{Inner: ast.Self{Id: 700043003}}, expr)
}

func TestParseTopBottomOfSet(t *testing.T) {
	expr, err := Parse("!!> << 404684003")
	require.NoError(t, err)
	require.Equal(t, ast.TopOfSet{Inner: ast.Hierarchy{Op: ast.DescendantOrSelf, Inner: ast.Self{Id: 404684003}}}, expr)
}

func TestParseRefinementUngrouped(t *testing.T) {
	expr, err := Parse("404684003 : 116676008 = 79654002")
	require.NoError(t, err)
	want := ast.Refined{
		Focus: ast.Self{Id: 404684003},
		Refinement: ast.Refinement{
			Ungrouped: []ast.AttributeConstraint{{
				Cardinality: ast.DefaultCardinality(),
				Attribute:   ast.Self{Id: 116676008},
				Op:          ast.Eq,
				Value:       ast.AttributeValue{Expr: ast.Self{Id: 79654002}},
			}},
		},
	}
	require.Equal(t, want, expr)
}

func TestParseRefinementWithCardinalityAndReverse(t *testing.T) {
	expr, err := Parse("404684003 : [0..1] R 116676008 = 79654002")
	require.NoError(t, err)
	refined := expr.(ast.Refined)
	require.Len(t, refined.Refinement.Ungrouped, 1)
	c := refined.Refinement.Ungrouped[0]
	require.Equal(t, ast.Cardinality{Min: 0, Max: 1}, c.Cardinality)
	require.True(t, c.Reverse)
}

func TestParseRefinementGroup(t *testing.T) {
	expr, err := Parse("404684003 : { 116676008 = 79654002, 363698007 = 53620007 }")
	require.NoError(t, err)
	refined := expr.(ast.Refined)
	require.Empty(t, refined.Refinement.Ungrouped)
	require.Len(t, refined.Refinement.Groups, 1)
	require.Len(t, refined.Refinement.Groups[0], 2)
}

func TestParseConcreteValueInteger(t *testing.T) {
	expr, err := Parse("404684003 : 1142135004 = #10")
	require.NoError(t, err)
	refined := expr.(ast.Refined)
	cv := refined.Refinement.Ungrouped[0].Value.Concrete
	require.NotNil(t, cv)
	require.Equal(t, ast.ConcreteInteger, cv.Kind)
	require.Equal(t, int64(10), cv.Integer)
}

func TestParseConcreteValueDecimal(t *testing.T) {
	expr, err := Parse("404684003 : 1142135004 = #10.5")
	require.NoError(t, err)
	refined := expr.(ast.Refined)
	cv := refined.Refinement.Ungrouped[0].Value.Concrete
	require.NotNil(t, cv)
	require.Equal(t, ast.ConcreteDecimal, cv.Kind)
	require.True(t, cv.Decimal.Equal(decimal.NewFromFloat(10.5)))
}

func TestParseFilterActive(t *testing.T) {
	expr, err := Parse("* {{ active = true }}")
	require.NoError(t, err)
	filtered := expr.(ast.Filtered)
	require.Equal(t, ast.Wildcard{}, filtered.Inner)
	require.Len(t, filtered.Clauses, 1)
	require.Equal(t, []ast.Filter{{Kind: ast.FilterActive, Bool: true}}, filtered.Clauses[0].Filters)
}

func TestParseFilterTermWithDomain(t *testing.T) {
	expr, err := Parse(`* {{ D term = "heart" }}`)
	require.NoError(t, err)
	filtered := expr.(ast.Filtered)
	require.Equal(t, ast.DomainDescription, filtered.Clauses[0].Domain)
	require.Equal(t, ast.FilterTerm, filtered.Clauses[0].Filters[0].Kind)
	require.Equal(t, []string{"heart"}, filtered.Clauses[0].Filters[0].Strings)
}

func TestParseHistoryFilter(t *testing.T) {
	expr, err := Parse("73211009 {{ +HISTORY-MOD }}")
	require.NoError(t, err)
	filtered := expr.(ast.Filtered)
	require.Equal(t, ast.FilterHistory, filtered.Clauses[0].Filters[0].Kind)
	require.Equal(t, ast.HistoryMod, filtered.Clauses[0].Filters[0].History)
}

func TestParseDotNavigation(t *testing.T) {
	expr, err := Parse("404684003 . 116676008")
	require.NoError(t, err)
	require.Equal(t, ast.DotNav{Inner: ast.Self{Id: 404684003}, Attrs: []ast.Expression{ast.Self{Id: 116676008}}}, expr)
}

func TestParseAltIdentifierFragmentForm(t *testing.T) {
	expr, err := Parse("http://snomed.info/sct#73211009")
	require.NoError(t, err)
	require.Equal(t, ast.AltIdentifier{Scheme: "http://snomed.info/sct", Identifier: "73211009"}, expr)
}

func TestParseAltIdentifierPathForm(t *testing.T) {
	expr, err := Parse("http://snomed.info/id/73211009")
	require.NoError(t, err)
	require.Equal(t, ast.AltIdentifier{Scheme: "http://snomed.info/id", Identifier: "73211009"}, expr)
}

func TestParseEmptyInputIsParseError(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)
}

func TestParseEmptyConceptSetIsError(t *testing.T) {
	_, err := Parse("( )")
	require.Error(t, err)
}

func TestParseUnterminatedStringIsError(t *testing.T) {
	_, err := Parse(`* {{ term = "abc }}`)
	require.Error(t, err)
}

func TestParseCardinalityMaxLessThanMinIsError(t *testing.T) {
	_, err := Parse("404684003 : [5..1] 116676008 = 79654002")
	require.Error(t, err)
}

func TestParseSingleDigitConceptId(t *testing.T) {
	expr, err := Parse("<< 1")
	require.NoError(t, err)
	require.Equal(t, ast.Hierarchy{Op: ast.DescendantOrSelf, Inner: ast.Self{Id: 1}}, expr)
}

func TestParseDescriptionTypeKeywordsResolveToTypeIds(t *testing.T) {
	cases := map[string]ast.ConceptId{
		"fsn": backend.FullySpecifiedNameTypeId,
		"syn": backend.SynonymTypeId,
		"def": backend.TextDefinitionTypeId,
	}
	for keyword, wantId := range cases {
		expr, err := Parse("* {{ type = " + keyword + " }}")
		require.NoError(t, err, keyword)
		filtered := expr.(ast.Filtered)
		require.Equal(t, []ast.ConceptId{wantId}, filtered.Clauses[0].Filters[0].Ids, keyword)
	}
}

func TestParseCaseSignificanceKeywordsResolveToIds(t *testing.T) {
	expr, err := Parse("* {{ caseSignificance = caseSensitive }}")
	require.NoError(t, err)
	filtered := expr.(ast.Filtered)
	require.Equal(t, []ast.ConceptId{backend.CaseSensitiveId}, filtered.Clauses[0].Filters[0].Ids)

	expr, err = Parse("* {{ caseSignificance = caseInsensitive }}")
	require.NoError(t, err)
	filtered = expr.(ast.Filtered)
	require.Equal(t, []ast.ConceptId{backend.CaseInsensitiveId}, filtered.Clauses[0].Filters[0].Ids)
}

// genConceptExpr builds a random small well-formed expression out of bare
// concept references, hierarchy operators, and AND/OR/MINUS compounds, for
// TestRoundTripParseAndDisplay's property check of base spec §8's
// round-trip invariant: "for every well-formed source S, parse(S) succeeds
// and the AST's canonical display reparses to the same AST."
func genConceptExpr(t *rapid.T, depth int) ast.Expression {
	id := ast.ConceptId(rapid.Int64Range(1, 999999999).Draw(t, "id"))
	leaf := ast.Self{Id: id}
	if depth <= 0 {
		return leaf
	}

	switch rapid.IntRange(0, 2).Draw(t, "shape") {
	case 0:
		return leaf
	case 1:
		ops := []ast.HierarchyOp{
			ast.DescendantOf, ast.DescendantOrSelf, ast.AncestorOf, ast.AncestorOrSelf,
			ast.ChildOf, ast.ChildOrSelf, ast.ParentOf, ast.ParentOrSelf,
		}
		op := ops[rapid.IntRange(0, len(ops)-1).Draw(t, "hop")]
		return ast.Hierarchy{Op: op, Inner: genConceptExpr(t, depth-1)}
	default:
		ops := []ast.CompoundOp{ast.And, ast.Or, ast.Minus}
		op := ops[rapid.IntRange(0, len(ops)-1).Draw(t, "cop")]
		return ast.Compound{
			Op:    op,
			Left:  genConceptExpr(t, depth-1),
			Right: genConceptExpr(t, depth-1),
		}
	}
}

func TestRoundTripParseAndDisplay(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := genConceptExpr(t, 3)
		source := ast.Display(original)

		parsed, err := Parse(source)
		require.NoError(t, err)
		require.Equal(t, source, ast.Display(parsed))

		reparsed, err := Parse(ast.Display(parsed))
		require.NoError(t, err)
		require.Equal(t, parsed, reparsed)
	})
}
