package backend

import "github.com/snomedtools/goecl/pkg/ecl/ast"

// Well-known SNOMED CT metadata concept ids the DescriptionType,
// DefinitionStatus, and CaseSignificance filters map their keyword aliases
// (e.g. "fsn", "primitive", "caseSensitive") onto at parse time, so the
// evaluator only ever compares ids.
const (
	SynonymTypeId        ast.ConceptId = 900000000000013009
	TextDefinitionTypeId ast.ConceptId = 900000000000550004
	DefinedId            ast.ConceptId = 900000000000073002
	PrimitiveId          ast.ConceptId = 900000000000074008
	CaseSensitiveId      ast.ConceptId = 900000000000017005
	CaseInsensitiveId    ast.ConceptId = 900000000000448009
)
