// Package backend defines the capability a caller-supplied SNOMED CT store
// must expose for pkg/ecl to evaluate expressions against it. The package
// ships no store implementation of its own: the evaluator is handed a
// Backend by shared, read-only reference and must see the same answers for
// the same concept no matter how many goroutines call it concurrently.
package backend

import (
	"iter"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
)

// Acceptability is a language reference set member's acceptability to a
// description.
type Acceptability int

const (
	AcceptabilityUnspecified Acceptability = iota
	Preferred
	Acceptable
)

// AttributeRelationship is one outgoing (or, via GetInboundRelationships,
// incoming) non-IS-A relationship.
type AttributeRelationship struct {
	AttributeTypeId ast.ConceptId
	DestinationId   ast.ConceptId
	Group           uint16 // 0 means ungrouped
}

// ConcreteRelationship is one outgoing concrete-domain relationship.
type ConcreteRelationship struct {
	AttributeTypeId ast.ConceptId
	Value           ast.ConcreteValue
	Group           uint16
}

// Description is one term attached to a concept.
type Description struct {
	DescriptionId      ast.ConceptId
	Term               string
	Language           string
	TypeId             ast.ConceptId // FSN / synonym / definition
	CaseSignificanceId ast.ConceptId
	Active             bool
	EffectiveTime      uint32 // YYYYMMDD, 0 if unknown
	ModuleId           ast.ConceptId
}

// LanguageRefsetMembership is one language reference set row attached to a
// description.
type LanguageRefsetMembership struct {
	RefsetId      ast.ConceptId
	Acceptability Acceptability
}

// HistoryAssociationType identifies a SNOMED CT concept inactivation
// association refset kind. SameAs, ReplacedBy and PossiblyEquivalentTo are
// the three the +HISTORY filter profiles name explicitly; the rest fill
// out HistoryMax's "all types" (base spec §6).
type HistoryAssociationType int

const (
	SameAs HistoryAssociationType = iota
	ReplacedBy
	PossiblyEquivalentTo
	PartiallyEquivalentTo
	Alternative
	MovedTo
	MovedFrom
	WasA
	RefersTo
)

// AllHistoryAssociationTypes is every type HistoryMax pulls in.
var AllHistoryAssociationTypes = []HistoryAssociationType{
	SameAs, ReplacedBy, PossiblyEquivalentTo, PartiallyEquivalentTo,
	Alternative, MovedTo, MovedFrom, WasA, RefersTo,
}

// Backend is the capability the evaluator and the closure builder consume.
// The five methods below are mandatory; every other method a caller might
// want to support is declared on Defaults instead, so that embedding
// Defaults is enough to produce a Backend that compiles and behaves as if
// none of those features were supported.
type Backend interface {
	// GetChildren returns id's direct IS-A children.
	GetChildren(id ast.ConceptId) []ast.ConceptId

	// GetParents returns id's direct IS-A parents. A concept may have more
	// than one: SNOMED CT's IS-A hierarchy is a DAG, not a tree.
	GetParents(id ast.ConceptId) []ast.ConceptId

	// HasConcept reports whether id exists in the store at all (active or
	// inactive).
	HasConcept(id ast.ConceptId) bool

	// AllConceptIds iterates every concept id known to the store, in an
	// unspecified, not-necessarily-repeatable order. Implementations that
	// stream from an external source may make this a single-pass iterator;
	// callers must not assume it can be restarted.
	AllConceptIds() iter.Seq[ast.ConceptId]

	// GetRefsetMembers returns the member concept ids of refsetId.
	GetRefsetMembers(refsetId ast.ConceptId) []ast.ConceptId

	OptionalCapability
}

// OptionalCapability groups every method needed only for refinements,
// filters, and alternate-identifier resolution. Defaults implements it
// with safe no-op answers; a real backend embeds Defaults and overrides
// whichever subset it can actually serve.
type OptionalCapability interface {
	// GetAttributes returns id's outgoing non-IS-A relationships.
	GetAttributes(id ast.ConceptId) []AttributeRelationship

	// GetInboundRelationships returns relationships where id is the
	// destination, for the refinement grammar's R (reverse) flag.
	GetInboundRelationships(id ast.ConceptId) []AttributeRelationship

	// GetConcreteValues returns id's outgoing concrete-domain relationships.
	GetConcreteValues(id ast.ConceptId) []ConcreteRelationship

	// GetDescriptions returns every description attached to id.
	GetDescriptions(id ast.ConceptId) []Description

	// GetDescriptionLanguageRefsets returns the language refset rows
	// attached to descriptionId.
	GetDescriptionLanguageRefsets(descriptionId ast.ConceptId) []LanguageRefsetMembership

	// IsConceptActive reports id's active flag. The default is true: an
	// unknown-to-this-backend concept is treated as if it were active,
	// since a backend that does not track activity has no inactive
	// concepts to report.
	IsConceptActive(id ast.ConceptId) bool

	// IsConceptPrimitive reports id's primitive/defined status, or false,
	// false if the backend does not track it.
	IsConceptPrimitive(id ast.ConceptId) (primitive bool, ok bool)

	// GetConceptModule returns id's owning module, or false if unknown.
	GetConceptModule(id ast.ConceptId) (moduleId ast.ConceptId, ok bool)

	// GetConceptEffectiveTime returns id's effective time as YYYYMMDD, or
	// false if unknown.
	GetConceptEffectiveTime(id ast.ConceptId) (effectiveTime uint32, ok bool)

	// GetSemanticTag returns id's semantic tag, or false if unknown.
	GetSemanticTag(id ast.ConceptId) (tag string, ok bool)

	// GetHistoricalAssociationsByType returns the concepts id is associated
	// with via the given historical association type.
	GetHistoricalAssociationsByType(id ast.ConceptId, kind HistoryAssociationType) []ast.ConceptId

	// ResolveAlternateIdentifier resolves a URI-form identifier (scheme plus
	// fragment/path identifier, as split by pkg/ecl/parser) to a ConceptId.
	ResolveAlternateIdentifier(scheme, identifier string) (ast.ConceptId, bool)

	// GetRefsetMemberFields returns the refset-membership row fields
	// attached to id, keyed by field name, across every refset id is a
	// member of. It backs the generic `M <field> = <value>` Member filter
	// (base spec §6), which tests a concept's membership row rather than
	// the concept itself.
	GetRefsetMemberFields(id ast.ConceptId) map[string]string
}
