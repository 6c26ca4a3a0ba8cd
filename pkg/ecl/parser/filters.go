package parser

import (
	"strconv"
	"strings"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/backend"
	"github.com/snomedtools/goecl/pkg/ecl/lexer"
)

// parseFilterClause implements `filter_clause := '{{' optional_domain
// filter (',' filter)* '}}'` plus the additive `{{ +HISTORY... }}` form,
// which the base grammar folds into the same clause syntax.
func (p *parser) parseFilterClause() ast.FilterClause {
	if _, ok := p.consume(lexer.TokenTypeFilterOpen); !ok {
		return ast.FilterClause{}
	}

	domain := p.parseOptionalFilterDomain()
	clause := ast.FilterClause{Domain: domain}

	clause.Filters = append(clause.Filters, p.parseFilter(domain))
	for p.err == nil && p.tryConsumeComma() {
		clause.Filters = append(clause.Filters, p.parseFilter(domain))
	}

	p.consume(lexer.TokenTypeFilterClose)
	return clause
}

func (p *parser) parseOptionalFilterDomain() ast.FilterDomain {
	if !p.isToken(lexer.TokenTypeIdentifier) || len(p.current.Value) != 1 {
		return ast.DomainUnspecified
	}
	switch p.current.Value {
	case "C":
		p.advance()
		return ast.DomainConcept
	case "D":
		p.advance()
		return ast.DomainDescription
	case "M":
		p.advance()
		return ast.DomainMember
	default:
		return ast.DomainUnspecified
	}
}

func (p *parser) parseFilter(domain ast.FilterDomain) ast.Filter {
	if _, ok := p.tryConsume(lexer.TokenTypePlus); ok {
		return p.parseHistoryFilter()
	}

	if !p.isToken(lexer.TokenTypeIdentifier) {
		p.failf("expected a filter name, found %q", p.current.Value)
		return ast.Filter{}
	}

	name := strings.ToLower(p.current.Value)

	if domain == ast.DomainMember {
		if _, ok := memberReservedFilterNames[name]; !ok {
			return p.parseMemberFieldFilter()
		}
	}

	p.advance()

	switch name {
	case "active":
		return p.parseBoolFilter(ast.FilterActive)
	case "definitionstatus", "definitionstatusid":
		return p.parseDefinitionStatusFilter()
	case "moduleid":
		return p.parseIdListFilter(ast.FilterModule)
	case "effectivetime":
		return p.parseEffectiveTimeFilter()
	case "id":
		return p.parseIdListFilter(ast.FilterId)
	case "semantictag":
		return p.parseStringListFilter(ast.FilterSemanticTag)
	case "term":
		return p.parseTermFilter()
	case "language":
		return p.parseStringListFilter(ast.FilterLanguage)
	case "type", "typeid":
		return p.parseDescriptionTypeFilter()
	case "dialect", "dialectid":
		return p.parseDialectFilter()
	case "casesignificance", "casesignificanceid":
		return p.parseCaseSignificanceFilter()
	case "preferredin":
		return p.parseIdListFilter(ast.FilterPreferredIn)
	case "acceptablein":
		return p.parseIdListFilter(ast.FilterAcceptableIn)
	case "languagerefsetid":
		return p.parseIdListFilter(ast.FilterLanguageRefSet)
	default:
		p.failf("unrecognized filter name %q", name)
		return ast.Filter{}
	}
}

// memberReservedFilterNames are the field names with dedicated filter
// kinds; inside an M-domain clause, every other name is a generic
// `M <field> = <value>` member-row filter.
var memberReservedFilterNames = map[string]struct{}{
	"active":           {},
	"definitionstatus": {},
	"moduleid":         {},
	"effectivetime":    {},
	"id":               {},
}

// parseMemberFieldFilter implements the generic `M <field> = <value>`
// form: a field name not otherwise reserved, tested against the refset
// member row rather than the concept itself.
func (p *parser) parseMemberFieldFilter() ast.Filter {
	fieldTok, ok := p.consume(lexer.TokenTypeIdentifier)
	if !ok {
		return ast.Filter{}
	}
	if _, ok := p.consume(lexer.TokenTypeEquals); !ok {
		return ast.Filter{}
	}
	var value string
	switch {
	case p.isToken(lexer.TokenTypeString):
		tok, _ := p.consume(lexer.TokenTypeString)
		value = tok.Value
	case p.isToken(lexer.TokenTypeNumber):
		tok, _ := p.consume(lexer.TokenTypeNumber)
		value = tok.Value
	case p.isToken(lexer.TokenTypeIdentifier):
		tok, _ := p.consume(lexer.TokenTypeIdentifier)
		value = tok.Value
	default:
		p.failf("expected a member field value, found %q", p.current.Value)
		return ast.Filter{}
	}
	return ast.Filter{Kind: ast.FilterMember, MemberField: fieldTok.Value, MemberValue: value}
}

func (p *parser) parseBoolFilter(kind ast.FilterKind) ast.Filter {
	if _, ok := p.consume(lexer.TokenTypeEquals); !ok {
		return ast.Filter{}
	}
	switch {
	case p.tryConsumeKeyword("true"):
		return ast.Filter{Kind: kind, Bool: true}
	case p.tryConsumeKeyword("false"):
		return ast.Filter{Kind: kind, Bool: false}
	default:
		p.failf("expected true or false, found %q", p.current.Value)
		return ast.Filter{}
	}
}

func (p *parser) parseDefinitionStatusFilter() ast.Filter {
	if _, ok := p.consume(lexer.TokenTypeEquals); !ok {
		return ast.Filter{}
	}
	switch {
	case p.tryConsumeKeyword("primitive"):
		return ast.Filter{Kind: ast.FilterDefinitionStatus, Bool: true}
	case p.tryConsumeKeyword("defined"):
		return ast.Filter{Kind: ast.FilterDefinitionStatus, Bool: false}
	case p.isToken(lexer.TokenTypeNumber, lexer.TokenTypeLeftParen):
		f := p.parseIdListFilter(ast.FilterDefinitionStatus)
		return f
	default:
		p.failf("expected primitive, defined, or a concept ID, found %q", p.current.Value)
		return ast.Filter{}
	}
}

// parseIdListFilter implements `<field> = sctid | (sctid...)`.
func (p *parser) parseIdListFilter(kind ast.FilterKind) ast.Filter {
	if _, ok := p.consume(lexer.TokenTypeEquals); !ok {
		return ast.Filter{}
	}
	ids := p.parseConceptIdOrList()
	return ast.Filter{Kind: kind, Ids: ids}
}

func (p *parser) parseConceptIdOrList() []ast.ConceptId {
	if p.isToken(lexer.TokenTypeNumber) {
		tok, _ := p.consume(lexer.TokenTypeNumber)
		id, err := parseConceptId(tok.Value)
		if err != nil {
			p.failf("invalid concept ID %q: %v", tok.Value, err)
			return nil
		}
		return []ast.ConceptId{id}
	}

	if _, ok := p.consume(lexer.TokenTypeLeftParen); !ok {
		return nil
	}
	var ids []ast.ConceptId
	for !p.isToken(lexer.TokenTypeRightParen) {
		tok, ok := p.consume(lexer.TokenTypeNumber)
		if !ok {
			return nil
		}
		id, err := parseConceptId(tok.Value)
		if err != nil {
			p.failf("invalid concept ID %q: %v", tok.Value, err)
			return nil
		}
		ids = append(ids, id)
	}
	p.consume(lexer.TokenTypeRightParen)
	return ids
}

func (p *parser) parseStringListFilter(kind ast.FilterKind) ast.Filter {
	if _, ok := p.consume(lexer.TokenTypeEquals); !ok {
		return ast.Filter{}
	}
	return ast.Filter{Kind: kind, Strings: p.parseStringOrList()}
}

func (p *parser) parseStringOrList() []string {
	if p.isToken(lexer.TokenTypeString) {
		tok, _ := p.consume(lexer.TokenTypeString)
		return []string{tok.Value}
	}
	if _, ok := p.consume(lexer.TokenTypeLeftParen); !ok {
		return nil
	}
	var out []string
	for !p.isToken(lexer.TokenTypeRightParen) {
		tok, ok := p.consume(lexer.TokenTypeString)
		if !ok {
			return nil
		}
		out = append(out, tok.Value)
	}
	p.consume(lexer.TokenTypeRightParen)
	return out
}

func (p *parser) parseEffectiveTimeFilter() ast.Filter {
	op := p.parseComparisonOp()
	if p.err != nil {
		return ast.Filter{}
	}
	dateTok, ok := p.consume(lexer.TokenTypeNumber)
	if !ok {
		return ast.Filter{}
	}
	date, err := strconv.ParseUint(dateTok.Value, 10, 32)
	if err != nil {
		p.failf("invalid date %q: %v", dateTok.Value, err)
		return ast.Filter{}
	}
	return ast.Filter{Kind: ast.FilterEffectiveTime, CompareOp: op, Date: uint32(date)}
}

func (p *parser) parseTermFilter() ast.Filter {
	var match ast.TermMatchKind
	switch {
	case p.tryConsume2(lexer.TokenTypeEqualEquals):
		match = ast.TermExact
	case p.tryConsume2(lexer.TokenTypeEquals):
		match = ast.TermEquals
	case p.tryConsumeKeyword("match"):
		match = ast.TermMatch
	case p.tryConsumeKeyword("startsWith"):
		match = ast.TermStartsWith
	case p.tryConsumeKeyword("wild"):
		match = ast.TermWild
	case p.tryConsumeKeyword("regex"):
		match = ast.TermRegex
	default:
		p.failf("expected a term-match operator, found %q", p.current.Value)
		return ast.Filter{}
	}
	return ast.Filter{Kind: ast.FilterTerm, TermMatch: match, Strings: p.parseStringOrList()}
}

// tryConsume2 reports whether the current token is kind, consuming it if
// so; used where the operator itself determines the filter semantics
// rather than the filter name.
func (p *parser) tryConsume2(kind lexer.TokenType) bool {
	if !p.isToken(kind) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) parseDescriptionTypeFilter() ast.Filter {
	if _, ok := p.consume(lexer.TokenTypeEquals); !ok {
		return ast.Filter{}
	}
	switch {
	case p.tryConsumeKeyword("fsn"):
		return ast.Filter{Kind: ast.FilterDescriptionType, Ids: []ast.ConceptId{backend.FullySpecifiedNameTypeId}}
	case p.tryConsumeKeyword("syn"):
		return ast.Filter{Kind: ast.FilterDescriptionType, Ids: []ast.ConceptId{backend.SynonymTypeId}}
	case p.tryConsumeKeyword("def"):
		return ast.Filter{Kind: ast.FilterDescriptionType, Ids: []ast.ConceptId{backend.TextDefinitionTypeId}}
	default:
		return ast.Filter{Kind: ast.FilterDescriptionType, Ids: p.parseConceptIdOrList()}
	}
}

func (p *parser) parseDialectFilter() ast.Filter {
	if _, ok := p.consume(lexer.TokenTypeEquals); !ok {
		return ast.Filter{}
	}
	ids := p.parseConceptIdOrList()
	f := ast.Filter{Kind: ast.FilterDialect, Ids: ids}
	switch {
	case p.tryConsumeKeyword("preferred"):
		f.AcceptabilityPreferred = true
	case p.tryConsumeKeyword("acceptable"):
		f.AcceptabilityAcceptable = true
	}
	return f
}

func (p *parser) parseCaseSignificanceFilter() ast.Filter {
	if _, ok := p.consume(lexer.TokenTypeEquals); !ok {
		return ast.Filter{}
	}
	switch {
	case p.tryConsumeIdentifier("caseInsensitive"):
		return ast.Filter{Kind: ast.FilterCaseSignificance, Ids: []ast.ConceptId{backend.CaseInsensitiveId}}
	case p.tryConsumeIdentifier("caseSensitive"):
		return ast.Filter{Kind: ast.FilterCaseSignificance, Ids: []ast.ConceptId{backend.CaseSensitiveId}}
	default:
		return ast.Filter{Kind: ast.FilterCaseSignificance, Ids: p.parseConceptIdOrList()}
	}
}

// parseHistoryFilter implements `+HISTORY[-MIN|-MOD|-MAX]`. The lexer
// tokenizes each of the four spellings as a single keyword.
func (p *parser) parseHistoryFilter() ast.Filter {
	switch {
	case p.tryConsumeKeyword("HISTORY-MIN"):
		return ast.Filter{Kind: ast.FilterHistory, History: ast.HistoryMin}
	case p.tryConsumeKeyword("HISTORY-MOD"):
		return ast.Filter{Kind: ast.FilterHistory, History: ast.HistoryMod}
	case p.tryConsumeKeyword("HISTORY-MAX"):
		return ast.Filter{Kind: ast.FilterHistory, History: ast.HistoryMax}
	case p.tryConsumeKeyword("HISTORY"):
		return ast.Filter{Kind: ast.FilterHistory, History: ast.HistoryDefault}
	default:
		p.failf("expected HISTORY filter, found %q", p.current.Value)
		return ast.Filter{}
	}
}
