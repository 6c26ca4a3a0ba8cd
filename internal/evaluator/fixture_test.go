package evaluator

import (
	"iter"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/backend"
)

// toyStore is the end-to-end scenario backend of base spec §8: concept 1 has
// children {2, 3}, concept 2 has children {4, 5}, concept 3 has child {6};
// attribute 100 on concept 4 has destination 7; refset 200 has members
// {2, 4}. It is extended slightly (descriptions, grouped attributes, a
// second refset, an inactive concept with a historical association) so the
// same fixture can also exercise refinement, filter, and History-filter
// behavior without inventing a second toy hierarchy.
type toyStore struct {
	backend.Defaults
	children map[ast.ConceptId][]ast.ConceptId
	parents  map[ast.ConceptId][]ast.ConceptId
	attrs    map[ast.ConceptId][]backend.AttributeRelationship
	inbound  map[ast.ConceptId][]backend.AttributeRelationship
	refsets  map[ast.ConceptId][]ast.ConceptId
	descs    map[ast.ConceptId][]backend.Description
	active   map[ast.ConceptId]bool
	history  map[ast.ConceptId][]ast.ConceptId
	ids      []ast.ConceptId
}

func newToyStore() *toyStore {
	s := &toyStore{
		children: make(map[ast.ConceptId][]ast.ConceptId),
		parents:  make(map[ast.ConceptId][]ast.ConceptId),
		attrs:    make(map[ast.ConceptId][]backend.AttributeRelationship),
		inbound:  make(map[ast.ConceptId][]backend.AttributeRelationship),
		refsets:  make(map[ast.ConceptId][]ast.ConceptId),
		descs:    make(map[ast.ConceptId][]backend.Description),
		active:   make(map[ast.ConceptId]bool),
		history:  make(map[ast.ConceptId][]ast.ConceptId),
	}
	s.addEdge(1, 2)
	s.addEdge(1, 3)
	s.addEdge(2, 4)
	s.addEdge(2, 5)
	s.addEdge(3, 6)

	s.attrs[4] = []backend.AttributeRelationship{{AttributeTypeId: 100, DestinationId: 7, Group: 0}}
	s.inbound[7] = []backend.AttributeRelationship{{AttributeTypeId: 100, DestinationId: 4, Group: 0}}

	s.refsets[200] = []ast.ConceptId{2, 4}
	s.refsets[201] = []ast.ConceptId{6}

	for _, id := range []ast.ConceptId{1, 2, 3, 4, 5, 6, 7, 8, 200, 201} {
		s.active[id] = true
		s.ids = append(s.ids, id)
	}

	// 8 is inactive and historically replaced by 6, for History filter tests.
	s.active[8] = false
	s.history[8] = []ast.ConceptId{6}

	s.descs[4] = []backend.Description{{
		DescriptionId: 40, Term: "Insulin (substance)", TypeId: 900000000000003001,
		CaseSignificanceId: backend.CaseSensitiveId, Active: true,
	}}

	return s
}

func (s *toyStore) addEdge(parent, child ast.ConceptId) {
	s.children[parent] = append(s.children[parent], child)
	s.parents[child] = append(s.parents[child], parent)
}

func (s *toyStore) GetChildren(id ast.ConceptId) []ast.ConceptId { return s.children[id] }
func (s *toyStore) GetParents(id ast.ConceptId) []ast.ConceptId  { return s.parents[id] }

func (s *toyStore) HasConcept(id ast.ConceptId) bool {
	for _, x := range s.ids {
		if x == id {
			return true
		}
	}
	return false
}

func (s *toyStore) AllConceptIds() iter.Seq[ast.ConceptId] {
	ids := s.ids
	return func(yield func(ast.ConceptId) bool) {
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

func (s *toyStore) GetRefsetMembers(refsetId ast.ConceptId) []ast.ConceptId { return s.refsets[refsetId] }

func (s *toyStore) GetAttributes(id ast.ConceptId) []backend.AttributeRelationship {
	return s.attrs[id]
}

func (s *toyStore) GetInboundRelationships(id ast.ConceptId) []backend.AttributeRelationship {
	return s.inbound[id]
}

func (s *toyStore) GetDescriptions(id ast.ConceptId) []backend.Description { return s.descs[id] }

func (s *toyStore) IsConceptActive(id ast.ConceptId) bool {
	active, ok := s.active[id]
	if !ok {
		return true
	}
	return active
}

func (s *toyStore) GetHistoricalAssociationsByType(id ast.ConceptId, kind backend.HistoryAssociationType) []ast.ConceptId {
	if kind != backend.SameAs {
		return nil
	}
	return s.history[id]
}
