// Package parser implements the recursive-descent ECL parser described by
// the grammar in pkg/ecl/ast's documentation: expression precedence
// (OR > AND > MINUS), refinement and filter sub-grammars, and the
// one-token-of-lookahead rule that distinguishes a bare concept-reference
// set `( id id )` from a parenthesized expression. The parser style —
// a struct wrapping a PeekableLexer with consume/tryConsume helpers — is
// carried over from this codebase's schema DSL parser.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	safecast "github.com/ccoveille/go-safecast/v2"
	"github.com/shopspring/decimal"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/eclerrors"
	"github.com/snomedtools/goecl/pkg/ecl/lexer"
)

// Parse parses a complete ECL expression from source, returning a
// *eclerrors.ParseError on failure.
func Parse(source string) (ast.Expression, error) {
	if strings.TrimSpace(source) == "" {
		return nil, eclerrors.NewParseError(0, "empty expression")
	}

	p := newParser(source)
	defer p.close()

	expr := p.parseExpression()
	if p.err != nil {
		return nil, p.err
	}
	if !p.isToken(lexer.TokenTypeEOF) {
		p.failf("unexpected token after expression")
		return nil, p.err
	}
	return expr, nil
}

type parser struct {
	lex     *lexer.PeekableLexer
	current lexer.Lexeme
	err     *eclerrors.ParseError
}

func newParser(source string) *parser {
	p := &parser{lex: lexer.NewPeekableLexer(lexer.Lex(source))}
	p.advance()
	return p
}

func (p *parser) close() { p.lex.Close() }

// advance discards the current token and loads the next non-whitespace
// token into p.current.
func (p *parser) advance() {
	for {
		tok := p.lex.NextToken()
		if tok.Kind == lexer.TokenTypeWhitespace {
			continue
		}
		p.current = tok
		return
	}
}

func (p *parser) peekToken(countAhead int) lexer.Lexeme {
	// countAhead counts only non-whitespace tokens beyond p.current.
	seen := 0
	for i := 1; ; i++ {
		tok := p.lex.PeekToken(i)
		if tok.Kind == lexer.TokenTypeWhitespace {
			continue
		}
		seen++
		if seen == countAhead {
			return tok
		}
	}
}

func (p *parser) isToken(kinds ...lexer.TokenType) bool {
	for _, k := range kinds {
		if p.current.Kind == k {
			return true
		}
	}
	return false
}

func (p *parser) isKeyword(keyword string) bool {
	return p.current.Kind == lexer.TokenTypeKeyword && strings.EqualFold(p.current.Value, keyword)
}

func (p *parser) isIdentifier(name string) bool {
	return p.current.Kind == lexer.TokenTypeIdentifier && strings.EqualFold(p.current.Value, name)
}

func (p *parser) failf(format string, args ...any) {
	if p.err != nil {
		return // first error wins
	}
	p.err = eclerrors.NewParseError(int(p.current.Position), format, args...)
}

func (p *parser) tryConsume(kinds ...lexer.TokenType) (lexer.Lexeme, bool) {
	if p.err != nil || !p.isToken(kinds...) {
		return lexer.Lexeme{}, false
	}
	tok := p.current
	p.advance()
	return tok, true
}

func (p *parser) consume(kinds ...lexer.TokenType) (lexer.Lexeme, bool) {
	tok, ok := p.tryConsume(kinds...)
	if !ok {
		p.failf("unexpected token: expected one of %v, found %q", kinds, p.current.Value)
	}
	return tok, ok
}

func (p *parser) tryConsumeKeyword(keyword string) bool {
	if p.err != nil || !p.isKeyword(keyword) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) tryConsumeIdentifier(name string) bool {
	if p.err != nil || !p.isIdentifier(name) {
		return false
	}
	p.advance()
	return true
}

// --- Expression precedence: OR > AND > MINUS > sub_expr. ---

func (p *parser) parseExpression() ast.Expression {
	return p.parseOr()
}

func (p *parser) parseOr() ast.Expression {
	left := p.parseAnd()
	for p.err == nil && p.isKeyword("OR") {
		p.advance()
		right := p.parseAnd()
		left = ast.Compound{Op: ast.Or, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseAnd() ast.Expression {
	left := p.parseMinus()
	for p.err == nil && (p.isKeyword("AND") || p.isToken(lexer.TokenTypeComma)) {
		p.advance()
		right := p.parseMinus()
		left = ast.Compound{Op: ast.And, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseMinus() ast.Expression {
	left := p.parseSubExpression()
	for p.err == nil && p.isKeyword("MINUS") {
		p.advance()
		right := p.parseSubExpression()
		left = ast.Compound{Op: ast.Minus, Left: left, Right: right}
	}
	return left
}

// parseSubExpression implements `sub_expr := unary_op? focus refinement?
// filter*`, where unary_op is one of the eight hierarchy operators.
func (p *parser) parseSubExpression() ast.Expression {
	if p.err != nil {
		return nil
	}

	var result ast.Expression
	if op, ok := p.tryHierarchyOp(); ok {
		result = ast.Hierarchy{Op: op, Inner: p.parseFocus()}
	} else {
		result = p.parseFocus()
	}
	if p.err != nil {
		return nil
	}

	if p.isToken(lexer.TokenTypeColon) {
		p.advance()
		refinement := p.parseRefinement()
		if p.err != nil {
			return nil
		}
		result = ast.Refined{Focus: result, Refinement: refinement}
	}

	if p.isToken(lexer.TokenTypeFilterOpen) {
		var clauses []ast.FilterClause
		for p.isToken(lexer.TokenTypeFilterOpen) {
			clauses = append(clauses, p.parseFilterClause())
			if p.err != nil {
				return nil
			}
		}
		result = ast.Filtered{Inner: result, Clauses: clauses}
	}

	return p.maybeWrapDotNav(result)
}

func (p *parser) tryHierarchyOp() (ast.HierarchyOp, bool) {
	switch {
	case p.isToken(lexer.TokenTypeDescendantOrSelf):
		p.advance()
		return ast.DescendantOrSelf, true
	case p.isToken(lexer.TokenTypeDescendantOf):
		p.advance()
		return ast.DescendantOf, true
	case p.isToken(lexer.TokenTypeChildOrSelf):
		p.advance()
		return ast.ChildOrSelf, true
	case p.isToken(lexer.TokenTypeChildOf):
		p.advance()
		return ast.ChildOf, true
	case p.isToken(lexer.TokenTypeAncestorOrSelf):
		p.advance()
		return ast.AncestorOrSelf, true
	case p.isToken(lexer.TokenTypeAncestorOf):
		p.advance()
		return ast.AncestorOf, true
	case p.isToken(lexer.TokenTypeParentOrSelf):
		p.advance()
		return ast.ParentOrSelf, true
	case p.isToken(lexer.TokenTypeParentOf):
		p.advance()
		return ast.ParentOf, true
	default:
		return 0, false
	}
}

// parseFocus implements the `focus` production: a concept reference, an
// alt-identifier URI, a wildcard, a concept-reference set, a parenthesized
// expression, a member-of, or a top/bottom-of-set against a sub-expression.
func (p *parser) parseFocus() ast.Expression {
	if p.err != nil {
		return nil
	}

	switch {
	case p.isToken(lexer.TokenTypeTopOfSet):
		p.advance()
		return ast.TopOfSet{Inner: p.parseSubExpression()}

	case p.isToken(lexer.TokenTypeBottomOfSet):
		p.advance()
		return ast.BottomOfSet{Inner: p.parseSubExpression()}

	case p.isToken(lexer.TokenTypeCaret):
		p.advance()
		return ast.MemberOf{Inner: p.parseFocus()}

	case p.isToken(lexer.TokenTypeStar):
		p.advance()
		return ast.Wildcard{}

	case p.isToken(lexer.TokenTypeNumber):
		return p.parseConceptReference()

	case p.isToken(lexer.TokenTypeLeftParen):
		return p.parseParenthesized()

	case p.isToken(lexer.TokenTypeIdentifier):
		return p.parseAltIdentifier()

	default:
		p.failf("expected a concept reference, wildcard, or expression, found %q", p.current.Value)
		return nil
	}
}

func (p *parser) parseConceptReference() ast.Expression {
	numTok, ok := p.consume(lexer.TokenTypeNumber)
	if !ok {
		return nil
	}
	id, err := parseConceptId(numTok.Value)
	if err != nil {
		p.failf("invalid concept ID %q: %v", numTok.Value, err)
		return nil
	}

	term := ""
	if termTok, ok := p.tryConsume(lexer.TokenTypeTerm); ok {
		term = strings.TrimSpace(termTok.Value)
	}
	return ast.Self{Id: id, Term: term}
}

func parseConceptId(digits string) (ast.ConceptId, error) {
	if len(digits) < 1 || len(digits) > 18 {
		return 0, fmt.Errorf("SCTID must be 1-18 digits, found %d", len(digits))
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	return ast.ConceptId(v), nil
}

// parseParenthesized resolves the ConceptSet vs. grouped-expression
// ambiguity with one token of lookahead: scan the tokens between the
// parens without consuming them, and commit to a ConceptSet only if every
// one is a bare number.
func (p *parser) parseParenthesized() ast.Expression {
	p.advance() // consume '('

	if p.looksLikeConceptSet() {
		var ids []ast.ConceptId
		for !p.isToken(lexer.TokenTypeRightParen) {
			numTok, ok := p.consume(lexer.TokenTypeNumber)
			if !ok {
				return nil
			}
			id, err := parseConceptId(numTok.Value)
			if err != nil {
				p.failf("invalid concept ID %q: %v", numTok.Value, err)
				return nil
			}
			ids = append(ids, id)
		}
		if _, ok := p.consume(lexer.TokenTypeRightParen); !ok {
			return nil
		}
		if len(ids) == 0 {
			p.failf("empty concept set")
			return nil
		}
		return ast.ConceptSet{Ids: ids}
	}

	inner := p.parseExpression()
	if p.err != nil {
		return nil
	}
	if _, ok := p.consume(lexer.TokenTypeRightParen); !ok {
		return nil
	}
	return inner
}

// looksLikeConceptSet reports whether the upcoming tokens up to the
// matching ')' are all bare numbers, without consuming any of them.
func (p *parser) looksLikeConceptSet() bool {
	if p.isToken(lexer.TokenTypeRightParen) {
		return false // empty parens: treated as a malformed ConceptSet, not grouping
	}
	if !p.isToken(lexer.TokenTypeNumber) {
		return false
	}
	depth := 0
	for i := 1; ; i++ {
		tok := p.peekTokenRaw(i)
		switch tok.Kind {
		case lexer.TokenTypeEOF, lexer.TokenTypeError:
			return false
		case lexer.TokenTypeLeftParen:
			depth++
		case lexer.TokenTypeRightParen:
			if depth == 0 {
				return true
			}
			depth--
		case lexer.TokenTypeNumber, lexer.TokenTypeWhitespace:
			// permitted inside a ConceptSet
		default:
			return false
		}
	}
}

// peekTokenRaw peeks i tokens ahead of p.current (including whitespace),
// where i=1 is the immediate next token after p.current in the stream.
func (p *parser) peekTokenRaw(i int) lexer.Lexeme {
	return p.lex.PeekToken(i)
}

// parseAltIdentifier parses the URI concept-reference forms:
// `scheme-body '#' identifier-body` or `scheme-path '/' digits`.
func (p *parser) parseAltIdentifier() ast.Expression {
	var scheme strings.Builder
	for p.isToken(lexer.TokenTypeIdentifier, lexer.TokenTypeDot, lexer.TokenTypeColon, lexer.TokenTypeSlash) {
		scheme.WriteString(p.current.Value)
		p.advance()
	}

	if _, ok := p.tryConsume(lexer.TokenTypeHash); ok {
		idTok, ok := p.consume(lexer.TokenTypeNumber, lexer.TokenTypeIdentifier)
		if !ok {
			return nil
		}
		return ast.AltIdentifier{Scheme: scheme.String(), Identifier: idTok.Value}
	}

	schemeText := scheme.String()
	if strings.HasSuffix(schemeText, "/") && p.isToken(lexer.TokenTypeNumber) {
		digitsTok, _ := p.consume(lexer.TokenTypeNumber)
		return ast.AltIdentifier{Scheme: schemeText[:len(schemeText)-1], Identifier: digitsTok.Value}
	}

	p.failf("expected '#' or '/' in alternate identifier %q", schemeText)
	return nil
}

// maybeWrapDotNav implements `expr . attr1 . attr2 ...`, left-associative.
func (p *parser) maybeWrapDotNav(inner ast.Expression) ast.Expression {
	if p.err != nil || !p.isToken(lexer.TokenTypeDot) {
		return inner
	}
	var attrs []ast.Expression
	for p.isToken(lexer.TokenTypeDot) {
		p.advance()
		attrs = append(attrs, p.parseFocus())
		if p.err != nil {
			return nil
		}
	}
	return ast.DotNav{Inner: inner, Attrs: attrs}
}

// --- Refinement sub-grammar. ---

func (p *parser) parseRefinement() ast.Refinement {
	var refinement ast.Refinement
	p.parseRefinementItem(&refinement)
	for p.err == nil && (p.isToken(lexer.TokenTypeComma) || p.isKeyword("AND")) {
		p.advance()
		p.parseRefinementItem(&refinement)
	}
	return refinement
}

func (p *parser) parseRefinementItem(r *ast.Refinement) {
	if p.isToken(lexer.TokenTypeLeftBrace) {
		r.Groups = append(r.Groups, p.parseAttributeGroup())
		return
	}
	r.Ungrouped = append(r.Ungrouped, p.parseAttributeConstraint())
}

func (p *parser) parseAttributeGroup() []ast.AttributeConstraint {
	if _, ok := p.consume(lexer.TokenTypeLeftBrace); !ok {
		return nil
	}
	constraints := []ast.AttributeConstraint{p.parseAttributeConstraint()}
	for p.err == nil && p.tryConsumeComma() {
		constraints = append(constraints, p.parseAttributeConstraint())
	}
	p.consume(lexer.TokenTypeRightBrace)
	return constraints
}

func (p *parser) tryConsumeComma() bool {
	_, ok := p.tryConsume(lexer.TokenTypeComma)
	return ok
}

func (p *parser) parseAttributeConstraint() ast.AttributeConstraint {
	cardinality := ast.DefaultCardinality()
	if p.isToken(lexer.TokenTypeLeftBracket) {
		cardinality = p.parseCardinality()
	}

	reverse := p.tryConsumeKeyword("R")

	attrExpr := p.parseFocus()
	if p.err != nil {
		return ast.AttributeConstraint{}
	}

	op := p.parseComparisonOp()
	if p.err != nil {
		return ast.AttributeConstraint{}
	}

	value := p.parseAttributeValue()
	return ast.AttributeConstraint{
		Cardinality: cardinality,
		Reverse:     reverse,
		Attribute:   attrExpr,
		Op:          op,
		Value:       value,
	}
}

// parseCardinality implements `cardinality := '[' u32 '..' (u32 | '*') ']'`.
func (p *parser) parseCardinality() ast.Cardinality {
	if _, ok := p.consume(lexer.TokenTypeLeftBracket); !ok {
		return ast.Cardinality{}
	}
	minTok, ok := p.consume(lexer.TokenTypeNumber)
	if !ok {
		return ast.Cardinality{}
	}
	min, err := parseU32(minTok.Value)
	if err != nil {
		p.failf("invalid cardinality minimum %q: %v", minTok.Value, err)
		return ast.Cardinality{}
	}

	// '..' lexes as two TokenTypeDot tokens.
	if _, ok := p.consume(lexer.TokenTypeDot); !ok {
		return ast.Cardinality{}
	}
	if _, ok := p.consume(lexer.TokenTypeDot); !ok {
		return ast.Cardinality{}
	}

	var card ast.Cardinality
	card.Min = min
	if _, ok := p.tryConsume(lexer.TokenTypeStar); ok {
		card.Unbounded = true
	} else {
		maxTok, ok := p.consume(lexer.TokenTypeNumber)
		if !ok {
			return ast.Cardinality{}
		}
		max, err := parseU32(maxTok.Value)
		if err != nil {
			p.failf("invalid cardinality maximum %q: %v", maxTok.Value, err)
			return ast.Cardinality{}
		}
		if max < min {
			p.failf("cardinality max < min")
			return ast.Cardinality{}
		}
		card.Max = max
	}

	p.consume(lexer.TokenTypeRightBracket)
	return card
}

func parseU32(digits string) (uint32, error) {
	v, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, err
	}
	return safecast.Convert[uint32](v)
}

func (p *parser) parseComparisonOp() ast.ComparisonOp {
	switch {
	case p.isToken(lexer.TokenTypeEquals):
		p.advance()
		return ast.Eq
	case p.isToken(lexer.TokenTypeNotEquals):
		p.advance()
		return ast.Ne
	case p.isToken(lexer.TokenTypeDescendantOf): // bare '<'
		p.advance()
		return ast.Lt
	case p.isToken(lexer.TokenTypeLessEquals):
		p.advance()
		return ast.Le
	case p.isToken(lexer.TokenTypeAncestorOf): // bare '>'
		p.advance()
		return ast.Gt
	case p.isToken(lexer.TokenTypeGreaterEquals):
		p.advance()
		return ast.Ge
	default:
		p.failf("expected a comparison operator, found %q", p.current.Value)
		return 0
	}
}

func (p *parser) parseAttributeValue() ast.AttributeValue {
	if p.err != nil {
		return ast.AttributeValue{}
	}
	if cv, ok := p.tryParseConcreteValue(); ok {
		return ast.AttributeValue{Concrete: &cv}
	}
	return ast.AttributeValue{Expr: p.parseFocus()}
}

func (p *parser) tryParseConcreteValue() (ast.ConcreteValue, bool) {
	switch {
	case p.isToken(lexer.TokenTypeHash):
		p.advance()
		return p.parseNumericConcreteValue(), true

	case p.isToken(lexer.TokenTypeString):
		tok, _ := p.consume(lexer.TokenTypeString)
		return ast.ConcreteValue{Kind: ast.ConcreteString, String: tok.Value}, true

	case p.isKeyword("true"), p.isKeyword("false"):
		b := p.isKeyword("true")
		p.advance()
		return ast.ConcreteValue{Kind: ast.ConcreteBoolean, Boolean: b}, true

	default:
		return ast.ConcreteValue{}, false
	}
}

func (p *parser) parseNumericConcreteValue() ast.ConcreteValue {
	var text strings.Builder
	if _, ok := p.tryConsume(lexer.TokenTypeMinus); ok {
		text.WriteByte('-')
	}
	intTok, ok := p.consume(lexer.TokenTypeNumber)
	if !ok {
		return ast.ConcreteValue{}
	}
	text.WriteString(intTok.Value)

	if p.isToken(lexer.TokenTypeDot) && p.peekKindAfterCurrentDot() == lexer.TokenTypeNumber {
		p.advance() // '.'
		fracTok, _ := p.consume(lexer.TokenTypeNumber)
		text.WriteByte('.')
		text.WriteString(fracTok.Value)
		d, err := decimal.NewFromString(text.String())
		if err != nil {
			p.failf("invalid decimal literal %q: %v", text.String(), err)
			return ast.ConcreteValue{}
		}
		return ast.ConcreteValue{Kind: ast.ConcreteDecimal, Decimal: d}
	}

	v, err := strconv.ParseInt(text.String(), 10, 64)
	if err != nil {
		p.failf("invalid integer literal %q: %v", text.String(), err)
		return ast.ConcreteValue{}
	}
	return ast.ConcreteValue{Kind: ast.ConcreteInteger, Integer: v}
}

func (p *parser) peekKindAfterCurrentDot() lexer.TokenType {
	return p.peekToken(1).Kind
}
