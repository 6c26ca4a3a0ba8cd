package engine

import (
	"iter"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
	"github.com/snomedtools/goecl/pkg/ecl/backend"
)

// toyStore is the same toy backend base spec §8's end-to-end scenarios use:
// concept 1 has children {2, 3}, concept 2 has children {4, 5}, concept 3
// has child {6}; attribute 100 on concept 4 has destination 7; refset 200
// has members {2, 4}.
type toyStore struct {
	backend.Defaults
	children map[ast.ConceptId][]ast.ConceptId
	parents  map[ast.ConceptId][]ast.ConceptId
	attrs    map[ast.ConceptId][]backend.AttributeRelationship
	refsets  map[ast.ConceptId][]ast.ConceptId
	ids      []ast.ConceptId
}

func newToyStore() *toyStore {
	s := &toyStore{
		children: make(map[ast.ConceptId][]ast.ConceptId),
		parents:  make(map[ast.ConceptId][]ast.ConceptId),
		attrs:    make(map[ast.ConceptId][]backend.AttributeRelationship),
		refsets:  make(map[ast.ConceptId][]ast.ConceptId),
	}
	s.addEdge(1, 2)
	s.addEdge(1, 3)
	s.addEdge(2, 4)
	s.addEdge(2, 5)
	s.addEdge(3, 6)
	s.attrs[4] = []backend.AttributeRelationship{{AttributeTypeId: 100, DestinationId: 7}}
	s.refsets[200] = []ast.ConceptId{2, 4}
	s.ids = []ast.ConceptId{1, 2, 3, 4, 5, 6, 7, 200}
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
