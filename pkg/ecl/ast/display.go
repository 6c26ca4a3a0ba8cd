package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Display renders an Expression back into canonical ECL source text, and
// parsing Display(e) reproduces a structurally equal tree with these
// exceptions. Only active and history filters are rendered as ECL; every
// other filter kind renders as a placeholder listing the filter's fields,
// which the parser does not accept. Parentheses are written around a
// Compound wherever it is a sub-expression (an operand, an attribute name
// or value, a dot-navigation attribute) and around a hierarchy operator's
// operand that is not a focus form; every other sub-expression is written
// bare, so a tree whose source needed parentheses elsewhere (for example a
// refinement used as an operand of AND, or a hierarchy expression used as
// an attribute value) does not reparse to the same tree.
func Display(e Expression) string {
	var b strings.Builder
	writeExpr(&b, e)
	return b.String()
}

func writeExpr(b *strings.Builder, e Expression) {
	switch n := e.(type) {
	case Self:
		b.WriteString(strconv.FormatUint(uint64(n.Id), 10))
		if n.Term != "" {
			b.WriteString(" |")
			b.WriteString(n.Term)
			b.WriteString("|")
		}
	case AltIdentifier:
		b.WriteString(n.Scheme)
		b.WriteString("#")
		b.WriteString(n.Identifier)
	case ConceptSet:
		b.WriteString("(")
		for i, id := range n.Ids {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(strconv.FormatUint(uint64(id), 10))
		}
		b.WriteString(")")
	case Wildcard:
		b.WriteString("*")
	case Hierarchy:
		b.WriteString(n.Op.String())
		b.WriteString(" ")
		switch n.Inner.(type) {
		case Self, AltIdentifier, ConceptSet, Wildcard, MemberOf, TopOfSet, BottomOfSet:
			writeExpr(b, n.Inner)
		default:
			// The parser reads a hierarchy operator's operand as a focus, so
			// any other form (including a nested hierarchy) is parenthesized.
			b.WriteString("(")
			writeExpr(b, n.Inner)
			b.WriteString(")")
		}
	case MemberOf:
		b.WriteString("^ ")
		writeExprParenIfCompound(b, n.Inner)
	case Compound:
		writeExprParenIfCompound(b, n.Left)
		b.WriteString(" ")
		b.WriteString(n.Op.String())
		b.WriteString(" ")
		writeExprParenIfCompound(b, n.Right)
	case DotNav:
		writeExprParenIfCompound(b, n.Inner)
		for _, a := range n.Attrs {
			b.WriteString(" . ")
			writeExprParenIfCompound(b, a)
		}
	case Refined:
		writeExprParenIfCompound(b, n.Focus)
		b.WriteString(" : ")
		writeRefinement(b, n.Refinement)
	case Filtered:
		writeExprParenIfCompound(b, n.Inner)
		for _, c := range n.Clauses {
			b.WriteString(" ")
			writeFilterClause(b, c)
		}
	case TopOfSet:
		b.WriteString("!!> ")
		writeExprParenIfCompound(b, n.Inner)
	case BottomOfSet:
		b.WriteString("!!< ")
		writeExprParenIfCompound(b, n.Inner)
	default:
		fmt.Fprintf(b, "<unknown %T>", n)
	}
}

func writeExprParenIfCompound(b *strings.Builder, e Expression) {
	if _, ok := e.(Compound); ok {
		b.WriteString("(")
		writeExpr(b, e)
		b.WriteString(")")
		return
	}
	writeExpr(b, e)
}

func writeRefinement(b *strings.Builder, r Refinement) {
	parts := make([]string, 0, 1+len(r.Groups))
	if len(r.Ungrouped) > 0 {
		var inner strings.Builder
		for i, c := range r.Ungrouped {
			if i > 0 {
				inner.WriteString(", ")
			}
			writeAttributeConstraint(&inner, c)
		}
		parts = append(parts, inner.String())
	}
	for _, g := range r.Groups {
		var inner strings.Builder
		inner.WriteString("{")
		for i, c := range g {
			if i > 0 {
				inner.WriteString(", ")
			}
			writeAttributeConstraint(&inner, c)
		}
		inner.WriteString("}")
		parts = append(parts, inner.String())
	}
	b.WriteString(strings.Join(parts, ", "))
}

func writeAttributeConstraint(b *strings.Builder, c AttributeConstraint) {
	if !(c.Cardinality.Min == 1 && c.Cardinality.Unbounded) {
		b.WriteString("[")
		b.WriteString(strconv.FormatUint(uint64(c.Cardinality.Min), 10))
		b.WriteString("..")
		if c.Cardinality.Unbounded {
			b.WriteString("*")
		} else {
			b.WriteString(strconv.FormatUint(uint64(c.Cardinality.Max), 10))
		}
		b.WriteString("] ")
	}
	if c.Reverse {
		b.WriteString("R ")
	}
	writeExprParenIfCompound(b, c.Attribute)
	b.WriteString(" ")
	b.WriteString(c.Op.String())
	b.WriteString(" ")
	if c.Value.Concrete != nil {
		writeConcreteValue(b, *c.Value.Concrete)
	} else {
		writeExprParenIfCompound(b, c.Value.Expr)
	}
}

func writeConcreteValue(b *strings.Builder, v ConcreteValue) {
	switch v.Kind {
	case ConcreteInteger:
		fmt.Fprintf(b, "#%d", v.Integer)
	case ConcreteDecimal:
		fmt.Fprintf(b, "#%s", v.Decimal.String())
	case ConcreteString:
		fmt.Fprintf(b, "%q", v.String)
	case ConcreteBoolean:
		fmt.Fprintf(b, "%t", v.Boolean)
	}
}

func writeFilterClause(b *strings.Builder, c FilterClause) {
	b.WriteString("{{")
	switch c.Domain {
	case DomainConcept:
		b.WriteString(" C")
	case DomainDescription:
		b.WriteString(" D")
	case DomainMember:
		b.WriteString(" M")
	}
	for i, f := range c.Filters {
		if i > 0 || c.Domain != DomainUnspecified {
			b.WriteString(" ")
		}
		writeFilter(b, f)
		if i < len(c.Filters)-1 {
			b.WriteString(",")
		}
	}
	b.WriteString("}}")
}

func writeFilter(b *strings.Builder, f Filter) {
	// A compact, canonical rendering that does not reproduce the caller's
	// original spacing/aliasing. Only active and history filters are written
	// as parseable ECL; the placeholder for every other kind carries all of
	// the filter's fields, so distinct filters still render differently.
	switch f.Kind {
	case FilterActive:
		fmt.Fprintf(b, "active = %t", f.Bool)
	case FilterHistory:
		switch f.History {
		case HistoryMin:
			b.WriteString("+HISTORY-MIN")
		case HistoryMod:
			b.WriteString("+HISTORY-MOD")
		case HistoryMax:
			b.WriteString("+HISTORY-MAX")
		default:
			b.WriteString("+HISTORY")
		}
	default:
		fmt.Fprintf(b, "<filter %+v>", f)
	}
}
