package ir

import "fmt"

// NewUnaryExpr creates a pointwise unary expression (e.g. "Neg", "Exp")
// producing a fresh output TensorView with a is-identical-shape domain to a.
func NewUnaryExpr(f *Fusion, name string, a *TensorView) (*TensorView, error) {
	out := cloneDomainTV(f, a, a.dtype)
	e, err := NewExpression(f, OpUnary, name, []Operand{TensorOperand(a)}, []Operand{TensorOperand(out)})
	if err != nil {
		return nil, err
	}
	e.SetRootMap(identityRootMap(len(out.domain.root), 0))
	return out, nil
}

// identityRootMap builds an Exact RootMapping pairing output axis i with
// input-operand `operand`'s axis i, for i in [0, n).
func identityRootMap(n, operand int) []RootMapping {
	m := make([]RootMapping, n)
	for i := range m {
		m[i] = RootMapping{OutputIdx: i, InputOperand: operand, InputIdx: i, Exact: true}
	}
	return m
}

// NewBinaryExpr creates a pointwise binary expression (e.g. "Add", "Mul")
// between two tensors, applying spec.md 4.1's promotion rule to pick the
// output data type. Broadcasting between a and b is the caller's
// responsibility (insert Broadcast first); shapes must already match.
func NewBinaryExpr(f *Fusion, name string, a, b *TensorView) (*TensorView, error) {
	if len(a.domain.logical) != len(b.domain.logical) {
		return nil, fmt.Errorf("binary op %s rank mismatch: %d vs %d: %w", name, len(a.domain.logical), len(b.domain.logical), errInvalidInput)
	}
	result, _ := Promote(a.dtype, b.dtype)
	out := cloneDomainTV(f, a, result)
	e, err := NewExpression(f, OpBinary, name, []Operand{TensorOperand(a), TensorOperand(b)}, []Operand{TensorOperand(out)})
	if err != nil {
		return nil, err
	}

	var rootMap []RootMapping
	for i := range out.domain.root {
		aBc := a.domain.logical[i].isBroadcast
		bBc := b.domain.logical[i].isBroadcast
		// A broadcast axis paired against a concrete axis on the other
		// operand is only a Permissive correspondence (spec.md 4.2): it is
		// not structurally identical, merely broadcastable. Both axes
		// broadcast, or both concrete, is a full Exact correspondence.
		exactA := !(aBc && !bBc)
		exactB := !(bBc && !aBc)
		rootMap = append(rootMap,
			RootMapping{OutputIdx: i, InputOperand: 0, InputIdx: i, Exact: exactA},
			RootMapping{OutputIdx: i, InputOperand: 1, InputIdx: i, Exact: exactB},
		)
	}
	e.SetRootMap(rootMap)
	return out, nil
}

// cloneDomainTV builds a new TensorView whose root/logical/allocation/loop
// domains are freshly-created IDs with the same extents and iter-types as
// src's logical domain, i.e. a same-shape output.
func cloneDomainTV(f *Fusion, src *TensorView, dtype DataType) *TensorView {
	extents := make([]*Value, len(src.domain.logical))
	reduction := make([]bool, len(src.domain.logical))
	for i, d := range src.domain.logical {
		extents[i] = d.extent
		reduction[i] = d.iterType == Reduction
	}
	return NewTensorView(f, extents, reduction, dtype)
}

// NewBroadcastExpr inserts broadcast IDs at the positions in the output
// shape that are true, and returns the resulting TensorView. This models
// the scheduler primitive broadcast(axis, extent=1) at the expression
// level: it is how a tensor acquires a broadcast ID "from nowhere".
func NewBroadcastExpr(f *Fusion, a *TensorView, isBroadcastDim []bool) (*TensorView, error) {
	outLogical := make([]*IterDomain, len(isBroadcastDim))
	srcIdx := 0
	for i, bc := range isBroadcastDim {
		if bc {
			outLogical[i] = NewBroadcastIterDomain(f)
			continue
		}
		if srcIdx >= len(a.domain.logical) {
			return nil, fmt.Errorf("broadcast dim count exceeds input rank: %w", errInvalidInput)
		}
		outLogical[i] = a.domain.logical[srcIdx]
		srcIdx++
	}
	if srcIdx != len(a.domain.logical) {
		return nil, fmt.Errorf("broadcast did not consume every input dim: %w", errInvalidInput)
	}

	td := NewTensorDomain(f, outLogical)
	out := &TensorView{id: f.own(), fusion: f, domain: td, dtype: a.dtype, memoryType: Global}
	f.tensorViews = append(f.tensorViews, out)

	if _, err := NewExpression(f, OpBroadcast, "Broadcast", []Operand{TensorOperand(a)}, []Operand{TensorOperand(out)}); err != nil {
		return nil, err
	}
	return out, nil
}

// NewSqueezeExpr removes the broadcast IDs at the given logical-domain
// indices, each of which must have extent 1.
func NewSqueezeExpr(f *Fusion, a *TensorView, dims []int) (*TensorView, error) {
	drop := map[int]bool{}
	for _, d := range dims {
		drop[d] = true
	}
	var kept []*IterDomain
	for i, d := range a.domain.logical {
		if drop[i] {
			if !d.isBroadcast {
				return nil, fmt.Errorf("squeeze dim %d is not a broadcast ID: %w", i, errInvalidInput)
			}
			continue
		}
		kept = append(kept, d)
	}
	td := NewTensorDomain(f, kept)
	out := &TensorView{id: f.own(), fusion: f, domain: td, dtype: a.dtype, memoryType: Global}
	f.tensorViews = append(f.tensorViews, out)
	if _, err := NewExpression(f, OpSqueeze, "Squeeze", []Operand{TensorOperand(a)}, []Operand{TensorOperand(out)}); err != nil {
		return nil, err
	}
	return out, nil
}

// NewReductionExpr reduces a along the given logical-domain axes with op,
// producing an output tensor whose root domain matches a's root (reduced
// axes marked IterType Reduction) and whose logical/allocation domains
// drop the reduced axes. keepDim controls whether the dropped axes are
// replaced by size-1 broadcast IDs in the logical domain (matching
// reduction ops that keep rank).
func NewReductionExpr(f *Fusion, op ReductionOp, a *TensorView, axes []int, keepDim bool) (*TensorView, error) {
	reduced := map[int]bool{}
	for _, ax := range axes {
		reduced[ax] = true
	}

	root := make([]*IterDomain, len(a.domain.logical))
	for i, d := range a.domain.logical {
		if reduced[i] {
			rd := NewRootIterDomain(f, d.extent, Reduction)
			root[i] = rd
		} else {
			root[i] = d
		}
	}

	var logical []*IterDomain
	for i, d := range root {
		if reduced[i] {
			if keepDim {
				logical = append(logical, NewBroadcastIterDomain(f))
			}
			continue
		}
		logical = append(logical, d)
	}

	td := NewTensorDomain(f, root)
	td.SetLogical(logical)
	var alloc []*IterDomain
	var contig []Contiguity
	for _, d := range logical {
		alloc = append(alloc, d)
		if d.isBroadcast {
			contig = append(contig, ContiguityNone)
		} else {
			contig = append(contig, ContiguityTrue)
		}
	}
	td.SetAllocation(alloc, contig)
	td.SetLoop(root)

	out := &TensorView{id: f.own(), fusion: f, domain: td, dtype: a.dtype, memoryType: Global}
	f.tensorViews = append(f.tensorViews, out)

	e, err := NewExpression(f, OpReduction, "Reduction", []Operand{TensorOperand(a)}, []Operand{TensorOperand(out)})
	if err != nil {
		return nil, err
	}
	e.SetAttr("reduction_op", op)
	e.SetAttr("axes", append([]int(nil), axes...))
	var rootMap []RootMapping
	for i := range root {
		if reduced[i] {
			rootMap = append(rootMap, RootMapping{OutputIdx: i, InputOperand: 0, InputIdx: i, Exact: true})
		}
	}
	e.SetRootMap(rootMap)
	return out, nil
}

// NewWelfordExpr computes the streaming (mean, var*n, n) triple along axes,
// returning the three output tensors in that order. Per spec.md 8
// (Welford no-alias), none of these outputs may ever be aliased to a's
// buffer or to each other by the memory-aliasing pass.
func NewWelfordExpr(f *Fusion, a *TensorView, axes []int) (avg, varN, n *TensorView, err error) {
	mk := func() (*TensorView, error) {
		tv, e := NewReductionExpr(f, ReduceAdd, a, axes, false)
		return tv, e
	}
	if avg, err = mk(); err != nil {
		return nil, nil, nil, err
	}
	if varN, err = mk(); err != nil {
		return nil, nil, nil, err
	}
	if n, err = mk(); err != nil {
		return nil, nil, nil, err
	}
	outs := []Operand{TensorOperand(avg), TensorOperand(varN), TensorOperand(n)}
	e, err := NewExpression(f, OpWelford, "Welford", []Operand{TensorOperand(a)}, outs)
	if err != nil {
		return nil, nil, nil, err
	}
	e.SetAttr("axes", append([]int(nil), axes...))
	avg.SetDefinition(e)
	varN.SetDefinition(e)
	n.SetDefinition(e)
	return avg, varN, n, nil
}

// NewMatMulExpr creates a matrix-multiply expression between 2D (or
// batched) tensors a [..., m, k] and b [..., k, n], producing [..., m, n].
func NewMatMulExpr(f *Fusion, a, b *TensorView) (*TensorView, error) {
	ra, rb := a.domain.logical, b.domain.logical
	if len(ra) < 2 || len(rb) < 2 {
		return nil, fmt.Errorf("matmul operands must be rank >= 2: %w", errInvalidInput)
	}
	m := ra[len(ra)-2]
	n := rb[len(rb)-1]
	batch := ra[:len(ra)-2]

	outLogical := append(append([]*IterDomain(nil), batch...), m, n)
	result, _ := Promote(a.dtype, b.dtype)
	td := NewTensorDomain(f, outLogical)
	out := &TensorView{id: f.own(), fusion: f, domain: td, dtype: result, memoryType: Global}
	f.tensorViews = append(f.tensorViews, out)
	e, err := NewExpression(f, OpMatMul, "MatMul", []Operand{TensorOperand(a), TensorOperand(b)}, []Operand{TensorOperand(out)})
	if err != nil {
		return nil, err
	}
	// The contracted K axis never reaches the output, so it cannot be
	// expressed as a RootMapping (which always anchors on an output axis);
	// record it as an operand-to-operand pairing so the domain graph still
	// exact-maps the two operands' K dimensions to each other.
	e.SetAttr("operand_map", []OperandMapping{{
		OperandA: 0, IdxA: len(ra) - 1,
		OperandB: 1, IdxB: len(rb) - 2,
	}})
	return out, nil
}

// OperandMapping declares an Exact correspondence between two input
// operands' axes that does not appear in the expression's output, such as
// a matmul's contracted K dimension.
type OperandMapping struct {
	OperandA, IdxA int
	OperandB, IdxB int
}

// OperandMap returns the operand-to-operand axis correspondences attached
// to e, if any were set.
func (e *Expression) OperandMap() []OperandMapping {
	v, ok := e.Attr("operand_map")
	if !ok {
		return nil
	}
	return v.([]OperandMapping)
}
