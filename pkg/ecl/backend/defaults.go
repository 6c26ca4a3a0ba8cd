package backend

import (
	"strconv"
	"strings"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
)

// FullySpecifiedNameTypeId is the SNOMED CT description type id for the
// Fully Specified Name, used by DefaultSemanticTag to locate the
// description a semantic tag is parsed from.
const FullySpecifiedNameTypeId ast.ConceptId = 900000000000003001

// Defaults implements OptionalCapability with safe no-op answers: empty
// slices, false, and not-found. Embed it in a backend struct to get a
// minimal, compiling Backend; override whichever methods the store can
// actually answer.
type Defaults struct{}

func (Defaults) GetAttributes(ast.ConceptId) []AttributeRelationship          { return nil }
func (Defaults) GetInboundRelationships(ast.ConceptId) []AttributeRelationship { return nil }
func (Defaults) GetConcreteValues(ast.ConceptId) []ConcreteRelationship       { return nil }
func (Defaults) GetDescriptions(ast.ConceptId) []Description                  { return nil }
func (Defaults) GetDescriptionLanguageRefsets(ast.ConceptId) []LanguageRefsetMembership {
	return nil
}
func (Defaults) IsConceptActive(ast.ConceptId) bool                  { return true }
func (Defaults) IsConceptPrimitive(ast.ConceptId) (bool, bool)       { return false, false }
func (Defaults) GetConceptModule(ast.ConceptId) (ast.ConceptId, bool) { return 0, false }
func (Defaults) GetConceptEffectiveTime(ast.ConceptId) (uint32, bool) { return 0, false }

func (Defaults) GetSemanticTag(ast.ConceptId) (string, bool) { return "", false }

func (Defaults) GetHistoricalAssociationsByType(ast.ConceptId, HistoryAssociationType) []ast.ConceptId {
	return nil
}

func (Defaults) ResolveAlternateIdentifier(scheme, identifier string) (ast.ConceptId, bool) {
	return DefaultResolveAlternateIdentifier(scheme, identifier)
}

func (Defaults) GetRefsetMemberFields(ast.ConceptId) map[string]string { return nil }

// DefaultResolveAlternateIdentifier implements the base spec's default
// alternate-identifier resolution: the two well-known SNOMED International
// URI forms resolve by taking the identifier's trailing digits as the
// ConceptId directly, with no store lookup. Any other scheme is
// unresolvable by default.
func DefaultResolveAlternateIdentifier(scheme, identifier string) (ast.ConceptId, bool) {
	switch {
	case scheme == "http://snomed.info/id" || scheme == "http://snomed.info/sct":
		if nonDigit := strings.TrimLeft(identifier, "0123456789"); nonDigit != "" {
			return 0, false
		}
		n, err := strconv.ParseUint(identifier, 10, 64)
		if err != nil {
			return 0, false
		}
		return ast.ConceptId(n), true
	default:
		return 0, false
	}
}

// descriptionSource is the narrow slice of Backend that DefaultSemanticTag
// needs; accepting it instead of the full Backend lets callers pass a bare
// description store in tests without satisfying every mandatory method.
type descriptionSource interface {
	GetDescriptions(id ast.ConceptId) []Description
}

// DefaultSemanticTag parses the semantic tag out of b's Fully Specified
// Name for id, i.e. the parenthesized suffix of "<term> (<tag>)". It
// returns false if id has no active FSN or the FSN carries no tag.
func DefaultSemanticTag(b descriptionSource, id ast.ConceptId) (string, bool) {
	for _, d := range b.GetDescriptions(id) {
		if d.TypeId != FullySpecifiedNameTypeId || !d.Active {
			continue
		}
		open := strings.LastIndex(d.Term, "(")
		shut := strings.LastIndex(d.Term, ")")
		if open < 0 || shut < open {
			continue
		}
		return d.Term[open+1 : shut], true
	}
	return "", false
}
