package ir

import "fmt"

// Value is a scalar IR node: a compile-time literal, or a symbolic value
// whose concrete number is bound at runtime (an extent, a stride, a user
// scalar input). Tensor-valued data is represented separately by
// TensorView; spec.md treats "scalar or tensor-valued" as the two faces of
// a single Value type, but splitting them here lets Operand stay a plain
// two-field struct instead of a hand-rolled interface (Design Notes: avoid
// virtual dispatch where a tagged variant plus a dispatch table suffices,
// and here the tag -- scalar vs tensor -- is already load-bearing enough to
// be two Go types).
type Value struct {
	id      NodeID
	fusion  *Fusion
	dtype   DataType
	name    string
	isConst bool
	// constFloat/constInt/constBool hold the literal payload when isConst
	// is true; stored as
	// float64/int64/bool rather than a type switch at every read site, and
	// reinterpreted through dtype when printed or folded.
	constFloat float64
	constInt   int64
	constBool  bool
}

// ID returns the node's identity within its owning Fusion.
func (v *Value) ID() NodeID { return v.id }

// Fusion returns the Fusion that owns this Value.
func (v *Value) Fusion() *Fusion { return v.fusion }

// DType returns the Value's data type.
func (v *Value) DType() DataType { return v.dtype }

// IsConst reports whether this is a compile-time literal.
func (v *Value) IsConst() bool { return v.isConst }

// Name returns the Value's debug name, or "" if unset.
func (v *Value) Name() string { return v.name }

// SetName sets the Value's debug name.
func (v *Value) SetName(name string) { v.name = name }

// SetDType retypes a symbolic Value in place. Used by the index-type
// lowering pass to retarget a flat-index Value from the fusion's default
// scalar type to the kernel-wide index type chosen at bind time; never
// call this on a Value already in use as a typed operand elsewhere unless
// the retype is known to be index-only.
func (v *Value) SetDType(dtype DataType) { v.dtype = dtype }

func (v *Value) String() string {
	if v.isConst {
		switch {
		case v.dtype == Bool:
			return fmt.Sprintf("%t", v.constBool)
		case v.dtype.IsFloatingPoint():
			return fmt.Sprintf("%g", v.constFloat)
		default:
			return fmt.Sprintf("%d", v.constInt)
		}
	}
	if v.name != "" {
		return v.name
	}
	return fmt.Sprintf("val%d", v.id)
}

// NewSymbolicValue creates a symbolic (non-literal) scalar Value of the
// given type, owned by f.
func NewSymbolicValue(f *Fusion, dtype DataType) *Value {
	v := &Value{id: f.own(), fusion: f, dtype: dtype}
	f.values = append(f.values, v)
	return v
}

// NewIntConst creates an Int literal Value. Literal Values may be used as
// expression operands but never as a fusion input (Fusion.AddInput rejects
// them with InvalidInput).
func NewIntConst(f *Fusion, n int64) *Value {
	v := &Value{id: f.own(), fusion: f, dtype: Int, isConst: true, constInt: n}
	f.values = append(f.values, v)
	return v
}

// NewFloatConst creates a Double literal Value.
func NewFloatConst(f *Fusion, x float64) *Value {
	v := &Value{id: f.own(), fusion: f, dtype: Double, isConst: true, constFloat: x}
	f.values = append(f.values, v)
	return v
}

// NewBoolConst creates a Bool literal Value.
func NewBoolConst(f *Fusion, b bool) *Value {
	v := &Value{id: f.own(), fusion: f, dtype: Bool, isConst: true, constBool: b}
	f.values = append(f.values, v)
	return v
}

// Int returns the literal's integer payload; valid only when IsConst and
// DType is an integer type.
func (v *Value) Int() int64 { return v.constInt }

// Float returns the literal's floating-point payload; valid only when
// IsConst and DType is a floating-point type.
func (v *Value) Float() float64 { return v.constFloat }

// Bool returns the literal's boolean payload; valid only when IsConst and
// DType is Bool.
func (v *Value) Bool() bool { return v.constBool }
