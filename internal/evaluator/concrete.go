package evaluator

import "github.com/snomedtools/goecl/pkg/ecl/ast"

// compareConcreteValues applies op to actual against expected, per base
// spec §4.3: string comparisons use case-sensitive byte ordering, decimal
// equality uses exact (non-IEEE) comparison via shopspring/decimal per
// SPEC_FULL.md's resolution of the decimal Open Question, and booleans
// support only `=`/`!=`. A kind mismatch (e.g. comparing a string constraint
// against an integer relationship) never matches.
func compareConcreteValues(actual, expected ast.ConcreteValue, op ast.ComparisonOp) bool {
	if actual.Kind != expected.Kind {
		return false
	}
	switch actual.Kind {
	case ast.ConcreteInteger:
		return compareOrdered(actual.Integer, expected.Integer, op)
	case ast.ConcreteDecimal:
		return compareDecimal(actual, expected, op)
	case ast.ConcreteString:
		return compareOrdered(actual.String, expected.String, op)
	case ast.ConcreteBoolean:
		return compareBoolean(actual.Boolean, expected.Boolean, op)
	default:
		return false
	}
}

func compareOrdered[T int64 | string](a, b T, op ast.ComparisonOp) bool {
	switch op {
	case ast.Eq:
		return a == b
	case ast.Ne:
		return a != b
	case ast.Lt:
		return a < b
	case ast.Le:
		return a <= b
	case ast.Gt:
		return a > b
	case ast.Ge:
		return a >= b
	default:
		return false
	}
}

func compareDecimal(actual, expected ast.ConcreteValue, op ast.ComparisonOp) bool {
	switch op {
	case ast.Eq:
		return actual.Decimal.Equal(expected.Decimal)
	case ast.Ne:
		return !actual.Decimal.Equal(expected.Decimal)
	case ast.Lt:
		return actual.Decimal.LessThan(expected.Decimal)
	case ast.Le:
		return actual.Decimal.LessThanOrEqual(expected.Decimal)
	case ast.Gt:
		return actual.Decimal.GreaterThan(expected.Decimal)
	case ast.Ge:
		return actual.Decimal.GreaterThanOrEqual(expected.Decimal)
	default:
		return false
	}
}

func compareBoolean(a, b bool, op ast.ComparisonOp) bool {
	switch op {
	case ast.Eq:
		return a == b
	case ast.Ne:
		return a != b
	default:
		// Booleans support only = and != per base spec §4.3; any other
		// operator never matches rather than panicking on a malformed AST
		// a permissive backend might still hand the evaluator.
		return false
	}
}
