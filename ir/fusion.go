// Package ir implements the tensor-expression intermediate representation
// (HIR) that sits upstream of the scheduler and the kernel IR: Values,
// Expressions, IterDomains, TensorDomains and TensorViews, all owned by a
// single Fusion container.
//
// Node kinds are concrete Go structs registered with a single owning
// container rather than a global soup of pointers, the way a computation
// graph keeps its nodes reachable from one root without relying on
// pointer-stable identity elsewhere. An Expression is a tagged variant (Op
// field plus an attribute bag) rather than a closed Node interface, because
// the set of HIR operators is open-ended and the dispatch the scheduler
// needs is on the tag, not on virtual methods.
package ir

import "fmt"

// NodeID is a per-Fusion unique identifier handed out to every IR node. It
// exists so that components outside this package (the domain graph, the
// allocation-aliasing pass) can key maps and disjoint-set structures on IR
// identity without depending on Go pointer comparison being stable across
// serialization boundaries.
type NodeID uint64

// Fusion owns every IR node reachable from its inputs and outputs. Removing
// a Fusion (letting it become unreachable) destroys every node transitively;
// there is no cross-Fusion sharing. A node produced by one Fusion is invalid
// input to any API that takes a different Fusion (see Fusion.checkOwnership).
type Fusion struct {
	nextID NodeID

	values       []*Value
	ids          []*IterDomain
	idExprs      []*IdExpr
	tensorViews  []*TensorView
	tensorDomains []*TensorDomain
	exprs        []*Expression

	inputs  []Operand
	outputs []Operand
}

// New creates an empty Fusion.
func New() *Fusion {
	return &Fusion{}
}

func (f *Fusion) allocID() NodeID {
	f.nextID++
	return f.nextID
}

// own stamps a node with this Fusion as its owner. Called by every
// constructor in this package; never exported because nodes may only be
// created through Fusion methods or the constructors in this file.
func (f *Fusion) own() NodeID { return f.allocID() }

// AddInput registers v as a fusion input. A literal scalar Value may never
// be an input: spec InvalidInput.
func (f *Fusion) AddInput(op Operand) error {
	if op.IsScalar() && op.Value.IsConst() {
		return fmt.Errorf("fusion input must be symbolic, not a literal: %w", errInvalidInput)
	}
	if err := f.checkOwnership(op); err != nil {
		return err
	}
	if op.Tensor != nil {
		op.Tensor.MarkFusionInput()
	}
	f.inputs = append(f.inputs, op)
	return nil
}

// AddOutput registers v as a fusion output.
func (f *Fusion) AddOutput(op Operand) error {
	if err := f.checkOwnership(op); err != nil {
		return err
	}
	if op.Tensor != nil {
		op.Tensor.MarkFusionOutput()
	}
	f.outputs = append(f.outputs, op)
	return nil
}

// Inputs returns the registered fusion inputs in registration order.
func (f *Fusion) Inputs() []Operand { return append([]Operand(nil), f.inputs...) }

// Outputs returns the registered fusion outputs in registration order.
func (f *Fusion) Outputs() []Operand { return append([]Operand(nil), f.outputs...) }

// Values returns every Value owned by this Fusion.
func (f *Fusion) Values() []*Value { return append([]*Value(nil), f.values...) }

// IterDomains returns every IterDomain owned by this Fusion.
func (f *Fusion) IterDomains() []*IterDomain { return append([]*IterDomain(nil), f.ids...) }

// TensorViews returns every TensorView owned by this Fusion.
func (f *Fusion) TensorViews() []*TensorView { return append([]*TensorView(nil), f.tensorViews...) }

// IdExprs returns every IdExpr (Split/Merge/Swizzle/Resize) owned by this Fusion.
func (f *Fusion) IdExprs() []*IdExpr { return append([]*IdExpr(nil), f.idExprs...) }

// Expressions returns every Expression owned by this Fusion, in creation
// order (which is also a valid topological order since an Expression's
// inputs must already exist when it is constructed).
func (f *Fusion) Expressions() []*Expression { return append([]*Expression(nil), f.exprs...) }

func (f *Fusion) checkOwnership(op Operand) error {
	switch {
	case op.Value != nil && op.Value.fusion != f:
		return fmt.Errorf("value from a different fusion: %w", errInvalidInput)
	case op.Tensor != nil && op.Tensor.fusion != f:
		return fmt.Errorf("tensor view from a different fusion: %w", errInvalidInput)
	}
	return nil
}

// Operand is a use-site reference to either a scalar Value or a TensorView.
// Expression inputs/outputs and Fusion inputs/outputs are Operands because
// the HIR mixes scalar and tensor operands freely (e.g. a pad amount is a
// scalar operand of a Resize expression whose other operand is a tensor).
type Operand struct {
	Value  *Value
	Tensor *TensorView
}

// IsScalar reports whether this operand carries a scalar Value.
func (o Operand) IsScalar() bool { return o.Value != nil }

// IsTensor reports whether this operand carries a TensorView.
func (o Operand) IsTensor() bool { return o.Tensor != nil }

// DType returns the operand's data type regardless of which alternative is set.
func (o Operand) DType() DataType {
	if o.Value != nil {
		return o.Value.dtype
	}
	if o.Tensor != nil {
		return o.Tensor.dtype
	}
	return Opaque
}

// ScalarOperand wraps a Value as an Operand.
func ScalarOperand(v *Value) Operand { return Operand{Value: v} }

// TensorOperand wraps a TensorView as an Operand.
func TensorOperand(tv *TensorView) Operand { return Operand{Tensor: tv} }
