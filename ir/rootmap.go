package ir

// RootMapping declares that output root/logical axis OutputIdx of an
// Expression's output corresponds to input axis InputIdx of the tensor
// operand at InputOperand. Exact is true when the correspondence holds
// structurally (same extent, same transform history) and false when it is
// only a broadcast correspondence (the output axis is a broadcast ID that
// could concretize to the input axis, i.e. a Permissive-only mapping).
//
// Expression constructors in ops.go attach these as an attribute so that
// domaingraph.IdModel can build the Exact/Permissive disjoint-set graphs by
// a single generic walk over every Expression, instead of every consumer of
// the IR re-deriving per-operator axis correspondence (the approach
// NVFuser's PairwiseRootDomainMap takes, generalized here into data instead
// of per-op virtual methods per Design Notes).
type RootMapping struct {
	OutputIdx    int
	InputOperand int
	InputIdx     int
	Exact        bool
}

const rootMapAttrKey = "root_map"

// SetRootMap attaches the producer/consumer axis correspondence to e.
func (e *Expression) SetRootMap(m []RootMapping) { e.SetAttr(rootMapAttrKey, m) }

// RootMap returns the producer/consumer axis correspondence attached to e,
// or nil if none was set (e.g. a reduction/matmul constructed without going
// through the ops.go helpers).
func (e *Expression) RootMap() []RootMapping {
	v, ok := e.Attr(rootMapAttrKey)
	if !ok {
		return nil
	}
	return v.([]RootMapping)
}
