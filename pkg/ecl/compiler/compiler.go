// Package compiler sits between the raw parser and the evaluator: it
// parses a query string once, canonicalizes its AST so that algebraically
// equivalent queries share a cache key, and computes that key.
package compiler

import (
	"github.com/cespare/xxhash/v2"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/parser"
)

// Query is a parsed, canonicalized ECL expression ready for evaluation or
// cache lookup.
type Query struct {
	// Source is the original, unmodified query string.
	Source string

	// AST is the expression tree exactly as parsed, preserving source
	// operand order. The evaluator runs against this tree (or against a
	// planner-reordered copy of it), never against Canonical.
	AST ast.Expression

	// Canonical is AST with every commutative AND/OR operand pair sorted
	// into a deterministic order. It exists only to make CacheKey stable
	// across source strings that differ only in writer-chosen operand
	// order, e.g. "A OR B" and "B OR A".
	Canonical ast.Expression

	// CacheKey is a 64-bit digest of Canonical's display form, suitable
	// as a QueryCache key.
	CacheKey uint64
}

// Compile parses source and returns a Query carrying its canonical form
// and cache key. A syntax error is returned unwrapped from the parser as
// an *eclerrors.ParseError.
func Compile(source string) (*Query, error) {
	expr, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}

	canonical := Canonicalize(expr)
	return &Query{
		Source:    source,
		AST:       expr,
		Canonical: canonical,
		CacheKey:  CacheKey(canonical),
	}, nil
}

// CacheKey hashes an expression's canonical display form with xxhash.
// Two expressions that Canonicalize to the same tree always hash equal;
// two distinct trees share a key when their display forms coincide (see
// ast.Display) or when the 64-bit digest collides.
func CacheKey(expr ast.Expression) uint64 {
	return xxhash.Sum64String(ast.Display(expr))
}

// Canonicalize returns a copy of expr with every AND/OR Compound's
// operands sorted into a deterministic order (by their Display string).
// AND and OR are commutative and associative per the base grammar's set
// algebra, so reordering their immediate operands never changes the
// result set; MINUS is not commutative and is left exactly as written.
// The rest of the tree is copied structurally without modification.
func Canonicalize(expr ast.Expression) ast.Expression {
	switch e := expr.(type) {
	case ast.Compound:
		left := Canonicalize(e.Left)
		right := Canonicalize(e.Right)
		if e.Op == ast.And || e.Op == ast.Or {
			if ast.Display(left) > ast.Display(right) {
				left, right = right, left
			}
		}
		return ast.Compound{Op: e.Op, Left: left, Right: right}

	case ast.Hierarchy:
		return ast.Hierarchy{Op: e.Op, Inner: Canonicalize(e.Inner)}

	case ast.MemberOf:
		return ast.MemberOf{Inner: Canonicalize(e.Inner)}

	case ast.TopOfSet:
		return ast.TopOfSet{Inner: Canonicalize(e.Inner)}

	case ast.BottomOfSet:
		return ast.BottomOfSet{Inner: Canonicalize(e.Inner)}

	case ast.DotNav:
		attrs := make([]ast.Expression, len(e.Attrs))
		for i, a := range e.Attrs {
			attrs[i] = Canonicalize(a)
		}
		return ast.DotNav{Inner: Canonicalize(e.Inner), Attrs: attrs}

	case ast.Refined:
		return ast.Refined{Focus: Canonicalize(e.Focus), Refinement: canonicalizeRefinement(e.Refinement)}

	case ast.Filtered:
		return ast.Filtered{Inner: Canonicalize(e.Inner), Clauses: e.Clauses}

	default:
		// Self, AltIdentifier, ConceptSet, Wildcard carry no sub-expressions.
		return expr
	}
}

func canonicalizeRefinement(r ast.Refinement) ast.Refinement {
	out := ast.Refinement{
		Ungrouped: make([]ast.AttributeConstraint, len(r.Ungrouped)),
		Groups:    make([][]ast.AttributeConstraint, len(r.Groups)),
	}
	for i, c := range r.Ungrouped {
		out.Ungrouped[i] = canonicalizeConstraint(c)
	}
	for i, g := range r.Groups {
		group := make([]ast.AttributeConstraint, len(g))
		for j, c := range g {
			group[j] = canonicalizeConstraint(c)
		}
		out.Groups[i] = group
	}
	return out
}

func canonicalizeConstraint(c ast.AttributeConstraint) ast.AttributeConstraint {
	c.Attribute = Canonicalize(c.Attribute)
	if c.Value.Expr != nil {
		c.Value.Expr = Canonicalize(c.Value.Expr)
	}
	return c
}

// MustCompile is Compile's panic-on-error form, intended for literal
// queries embedded in Go source (tests, defaults), never for untrusted
// input.
func MustCompile(source string) *Query {
	q, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return q
}
