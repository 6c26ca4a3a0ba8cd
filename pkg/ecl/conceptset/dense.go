package conceptset

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/snomedtools/goecl/pkg/ecl/ast"
)

// Ordinals maps concept IDs to dense, contiguous array indices and back.
// pkg/ecl/closure builds one Ordinals per loaded hierarchy snapshot, then
// backs every ancestor/descendant set for that snapshot with a Dense Set
// addressed through it.
type Ordinals interface {
	Ordinal(id ast.ConceptId) (int, bool)
	Concept(ordinal int) ast.ConceptId
	Size() int
}

// Dense is a bitset-backed Set over a fixed, pre-declared universe of
// concepts. Union/Intersect/Subtract run as bit-parallel word operations,
// which is the point of using it: these sets are built once per closure
// snapshot and then combined in bulk, not mutated member by member in the
// evaluator's hot path.
type Dense struct {
	ordinals Ordinals
	bits     *bitset.BitSet
}

// NewDense returns an empty Dense set addressed by ordinals.
func NewDense(ordinals Ordinals) *Dense {
	return &Dense{ordinals: ordinals, bits: bitset.New(uint(ordinals.Size()))}
}

// WrapDense returns a Dense set backed directly by an existing bitset,
// addressed through ordinals. It exists for callers (pkg/ecl/closure) that
// already hold a precomputed *bitset.BitSet and want to expose it through
// the Set interface without copying.
func WrapDense(ordinals Ordinals, bits *bitset.BitSet) *Dense {
	return &Dense{ordinals: ordinals, bits: bits}
}

// NewDenseFromSlice returns a Dense set containing every id in ids that
// ordinals knows about. IDs outside the universe are silently dropped;
// closure callers only ever pass IDs drawn from the same snapshot.
func NewDenseFromSlice(ordinals Ordinals, ids []ast.ConceptId) *Dense {
	d := NewDense(ordinals)
	for _, id := range ids {
		d.Insert(id)
	}
	return d
}

func (d *Dense) Contains(id ast.ConceptId) bool {
	idx, ok := d.ordinals.Ordinal(id)
	if !ok {
		return false
	}
	return d.bits.Test(uint(idx))
}

func (d *Dense) Len() int {
	return int(d.bits.Count())
}

func (d *Dense) IsEmpty() bool {
	return d.bits.None()
}

func (d *Dense) Each(fn func(ast.ConceptId) bool) {
	for i, ok := d.bits.NextSet(0); ok; i, ok = d.bits.NextSet(i + 1) {
		if !fn(d.ordinals.Concept(int(i))) {
			return
		}
	}
}

func (d *Dense) ToSlice() []ast.ConceptId {
	out := make([]ast.ConceptId, 0, d.Len())
	d.Each(func(id ast.ConceptId) bool {
		out = append(out, id)
		return true
	})
	return out
}

// Union, Intersect and Subtract take the fast bitset path whenever other
// is itself a *Dense; callers combining two Dense sets are responsible
// for addressing them through the same Ordinals, the same contract any
// bit-parallel set structure places on its caller. Ordinals is not
// required to be comparable, so that precondition cannot be checked here.
func (d *Dense) Union(other Set) Set {
	if o, ok := other.(*Dense); ok {
		return &Dense{ordinals: d.ordinals, bits: d.bits.Union(o.bits)}
	}
	out := &Dense{ordinals: d.ordinals, bits: d.bits.Clone()}
	other.Each(func(id ast.ConceptId) bool {
		out.Insert(id)
		return true
	})
	return out
}

func (d *Dense) Intersect(other Set) Set {
	if o, ok := other.(*Dense); ok {
		return &Dense{ordinals: d.ordinals, bits: d.bits.Intersection(o.bits)}
	}
	out := NewDense(d.ordinals)
	d.Each(func(id ast.ConceptId) bool {
		if other.Contains(id) {
			out.Insert(id)
		}
		return true
	})
	return out
}

func (d *Dense) Subtract(other Set) Set {
	if o, ok := other.(*Dense); ok {
		return &Dense{ordinals: d.ordinals, bits: d.bits.Difference(o.bits)}
	}
	out := NewDense(d.ordinals)
	d.Each(func(id ast.ConceptId) bool {
		if !other.Contains(id) {
			out.Insert(id)
		}
		return true
	})
	return out
}

func (d *Dense) Insert(id ast.ConceptId) Set {
	idx, ok := d.ordinals.Ordinal(id)
	if !ok {
		return d
	}
	d.bits.Set(uint(idx))
	return d
}
