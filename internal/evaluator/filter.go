package evaluator

import (
	"regexp"
	"strings"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/backend"
	"github.com/snomedtools/goecl/pkg/ecl/conceptset"
)

// evalFiltered applies inner's {{ }} filter clauses after evaluating it,
// per base spec §4.3: "Filters are applied after the expression yields its
// candidate set." Clauses are conjunctive with each other, and every
// filter within one clause is conjunctive with its siblings, except
// History, which is additive rather than a predicate (base spec §6).
func (e *Evaluator) evalFiltered(ec *evalContext, node ast.Filtered) (conceptset.Set, error) {
	candidates, err := e.eval(ec, node.Inner)
	if err != nil {
		return nil, err
	}

	current := candidates
	var historyClauses []ast.Filter
	for _, clause := range node.Clauses {
		predicates := make([]ast.Filter, 0, len(clause.Filters))
		for _, f := range clause.Filters {
			if f.Kind == ast.FilterHistory {
				historyClauses = append(historyClauses, f)
				continue
			}
			predicates = append(predicates, f)
		}
		if len(predicates) == 0 {
			continue
		}
		filtered, err := e.applyPredicateFilters(ec, current, clause.Domain, predicates)
		if err != nil {
			return nil, err
		}
		current = filtered
	}

	for _, h := range historyClauses {
		current, err = e.applyHistoryFilter(ec, current, h)
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}

// applyPredicateFilters keeps only the candidates satisfying every
// non-History filter in predicates, checking the deadline per base spec §5
// ("at every filter iteration").
func (e *Evaluator) applyPredicateFilters(ec *evalContext, candidates conceptset.Set, domain ast.FilterDomain, predicates []ast.Filter) (conceptset.Set, error) {
	out := conceptset.Empty()
	var iterErr error
	candidates.Each(func(c ast.ConceptId) bool {
		if err := ec.checkDeadline(); err != nil {
			iterErr = err
			return false
		}
		for _, f := range predicates {
			if !e.matchesFilter(c, domain, f) {
				return true
			}
		}
		out.Insert(c)
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return out, nil
}

func (e *Evaluator) matchesFilter(c ast.ConceptId, domain ast.FilterDomain, f ast.Filter) bool {
	switch f.Kind {
	case ast.FilterActive:
		return e.backend.IsConceptActive(c) == f.Bool
	case ast.FilterDefinitionStatus:
		return e.matchesDefinitionStatus(c, f)
	case ast.FilterModule:
		return e.matchesConceptModule(c, f)
	case ast.FilterEffectiveTime:
		et, ok := e.backend.GetConceptEffectiveTime(c)
		if !ok {
			return false
		}
		return compareOrdered(int64(et), int64(f.Date), f.CompareOp)
	case ast.FilterId:
		return containsConceptId(f.Ids, c)
	case ast.FilterSemanticTag:
		tag, ok := e.backend.GetSemanticTag(c)
		if !ok {
			return false
		}
		return containsFold(f.Strings, tag)
	case ast.FilterTerm:
		return e.matchesTerm(c, f)
	case ast.FilterLanguage:
		return e.anyDescription(c, func(d backend.Description) bool {
			return containsFold(f.Strings, d.Language)
		})
	case ast.FilterDescriptionType:
		return e.anyDescription(c, func(d backend.Description) bool {
			return containsConceptId(f.Ids, d.TypeId)
		})
	case ast.FilterDialect:
		return e.matchesDialectOrLanguageRefset(c, f)
	case ast.FilterCaseSignificance:
		return e.anyDescription(c, func(d backend.Description) bool {
			return containsConceptId(f.Ids, d.CaseSignificanceId)
		})
	case ast.FilterPreferredIn:
		return e.matchesAcceptabilityIn(c, f.Ids, backend.Preferred)
	case ast.FilterAcceptableIn:
		return e.matchesAcceptabilityIn(c, f.Ids, backend.Acceptable)
	case ast.FilterLanguageRefSet:
		return e.matchesDialectOrLanguageRefset(c, f)
	case ast.FilterMember:
		return e.matchesMemberField(c, f)
	default:
		return true
	}
}

func (e *Evaluator) matchesDefinitionStatus(c ast.ConceptId, f ast.Filter) bool {
	primitive, ok := e.backend.IsConceptPrimitive(c)
	if !ok {
		return false
	}
	if len(f.Ids) > 0 {
		switch {
		case containsConceptId(f.Ids, backend.PrimitiveId):
			return primitive
		case containsConceptId(f.Ids, backend.DefinedId):
			return !primitive
		default:
			// The backend only signals primitive/defined as a bool; an id
			// that is neither well-known constant can't be confirmed
			// against it, so it can't be a match.
			return false
		}
	}
	return primitive == f.Bool
}

func (e *Evaluator) matchesConceptModule(c ast.ConceptId, f ast.Filter) bool {
	moduleId, ok := e.backend.GetConceptModule(c)
	if !ok {
		return false
	}
	return containsConceptId(f.Ids, moduleId)
}

func (e *Evaluator) matchesTerm(c ast.ConceptId, f ast.Filter) bool {
	return e.anyDescription(c, func(d backend.Description) bool {
		for _, pattern := range f.Strings {
			if matchesTermPattern(d.Term, pattern, f.TermMatch) {
				return true
			}
		}
		return false
	})
}

// matchesTermPattern implements the Term filter's six comparison kinds per
// base spec §6. Wildcard `*` matches any substring, anchored by its
// position in the pattern (base spec §9's Open Question: every `*` is
// treated as a wildcard, with no escape syntax).
func matchesTermPattern(term, pattern string, kind ast.TermMatchKind) bool {
	switch kind {
	case ast.TermEquals:
		return strings.EqualFold(term, pattern)
	case ast.TermExact:
		return term == pattern
	case ast.TermMatch:
		return strings.Contains(strings.ToLower(term), strings.ToLower(pattern))
	case ast.TermStartsWith:
		return strings.HasPrefix(strings.ToLower(term), strings.ToLower(pattern))
	case ast.TermWild:
		return matchesWildcardPattern(strings.ToLower(term), strings.ToLower(pattern))
	case ast.TermRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(term)
	default:
		return false
	}
}

func matchesWildcardPattern(term, pattern string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return term == pattern
	}
	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(term[pos:], part)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}
	if last := parts[len(parts)-1]; last != "" {
		return strings.HasSuffix(term, last)
	}
	return true
}

// matchesDialectOrLanguageRefset implements both the Dialect and
// LanguageRefSet filters: some description belongs to one of f.Ids's
// listed refsets, with the acceptability qualifier (if present in the
// surface form) further restricting which acceptability counts.
func (e *Evaluator) matchesDialectOrLanguageRefset(c ast.ConceptId, f ast.Filter) bool {
	wantAny := !f.AcceptabilityPreferred && !f.AcceptabilityAcceptable
	for _, d := range e.backend.GetDescriptions(c) {
		for _, m := range e.backend.GetDescriptionLanguageRefsets(d.DescriptionId) {
			if !containsConceptId(f.Ids, m.RefsetId) {
				continue
			}
			if wantAny {
				return true
			}
			if f.AcceptabilityPreferred && m.Acceptability == backend.Preferred {
				return true
			}
			if f.AcceptabilityAcceptable && m.Acceptability == backend.Acceptable {
				return true
			}
		}
	}
	return false
}

func (e *Evaluator) matchesAcceptabilityIn(c ast.ConceptId, refsetIds []ast.ConceptId, want backend.Acceptability) bool {
	for _, d := range e.backend.GetDescriptions(c) {
		for _, m := range e.backend.GetDescriptionLanguageRefsets(d.DescriptionId) {
			if m.Acceptability == want && containsConceptId(refsetIds, m.RefsetId) {
				return true
			}
		}
	}
	return false
}

func (e *Evaluator) matchesMemberField(c ast.ConceptId, f ast.Filter) bool {
	fields := e.backend.GetRefsetMemberFields(c)
	if fields == nil {
		return false
	}
	v, ok := fields[f.MemberField]
	return ok && v == f.MemberValue
}

func (e *Evaluator) anyDescription(c ast.ConceptId, pred func(backend.Description) bool) bool {
	for _, d := range e.backend.GetDescriptions(c) {
		if pred(d) {
			return true
		}
	}
	return false
}

func containsConceptId(ids []ast.ConceptId, id ast.ConceptId) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// applyHistoryFilter implements the additive +HISTORY[-MIN|-MOD|-MAX]
// filter of base spec §4.3/§6: it augments candidates with the historical
// associations of its currently-inactive members, per the profile's set of
// contributing association types.
func (e *Evaluator) applyHistoryFilter(ec *evalContext, candidates conceptset.Set, f ast.Filter) (conceptset.Set, error) {
	types := historyAssociationTypes(f.History)
	out := candidates
	var iterErr error
	candidates.Each(func(c ast.ConceptId) bool {
		if err := ec.checkDeadline(); err != nil {
			iterErr = err
			return false
		}
		if e.backend.IsConceptActive(c) {
			return true
		}
		for _, t := range types {
			for _, assoc := range e.backend.GetHistoricalAssociationsByType(c, t) {
				out = out.Union(conceptset.Of(assoc))
			}
		}
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return out, nil
}

// historyAssociationTypes maps a HistoryProfile to the association types it
// pulls in, per base spec §4.3: HistoryMin is SameAs alone, HistoryMod adds
// ReplacedBy and PossiblyEquivalentTo, HistoryMax is every type.
// HistoryDefault (bare `+HISTORY`) is treated the same as HistoryMin.
func historyAssociationTypes(profile ast.HistoryProfile) []backend.HistoryAssociationType {
	switch profile {
	case ast.HistoryMod:
		return []backend.HistoryAssociationType{backend.SameAs, backend.ReplacedBy, backend.PossiblyEquivalentTo}
	case ast.HistoryMax:
		return backend.AllHistoryAssociationTypes
	default:
		return []backend.HistoryAssociationType{backend.SameAs}
	}
}
