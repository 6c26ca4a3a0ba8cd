package conceptset

import "github.com/snomedtools/goecl/pkg/ecl/ast"

// sparse is a map-backed Set. It is the right representation for the
// typical evaluator intermediate result: a handful to a few thousand
// matching concepts, not the full SNOMED CT universe.
type sparse struct {
	members map[ast.ConceptId]struct{}
}

func (s *sparse) Contains(id ast.ConceptId) bool {
	_, ok := s.members[id]
	return ok
}

func (s *sparse) Len() int {
	return len(s.members)
}

func (s *sparse) IsEmpty() bool {
	return len(s.members) == 0
}

func (s *sparse) Each(fn func(ast.ConceptId) bool) {
	for id := range s.members {
		if !fn(id) {
			return
		}
	}
}

func (s *sparse) ToSlice() []ast.ConceptId {
	out := make([]ast.ConceptId, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	return out
}

func (s *sparse) Union(other Set) Set {
	out := &sparse{members: make(map[ast.ConceptId]struct{}, s.Len()+other.Len())}
	for id := range s.members {
		out.members[id] = struct{}{}
	}
	other.Each(func(id ast.ConceptId) bool {
		out.members[id] = struct{}{}
		return true
	})
	return out
}

func (s *sparse) Intersect(other Set) Set {
	out := &sparse{members: make(map[ast.ConceptId]struct{})}
	for id := range s.members {
		if other.Contains(id) {
			out.members[id] = struct{}{}
		}
	}
	return out
}

func (s *sparse) Subtract(other Set) Set {
	out := &sparse{members: make(map[ast.ConceptId]struct{})}
	for id := range s.members {
		if !other.Contains(id) {
			out.members[id] = struct{}{}
		}
	}
	return out
}

func (s *sparse) Insert(id ast.ConceptId) Set {
	s.members[id] = struct{}{}
	return s
}
