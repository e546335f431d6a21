package ir

// DataType enumerates the value types carried by IR nodes: numeric types
// used by tensor elements and scalars, plus the compiler's own auxiliary
// types (Index, Pointer, Array, Opaque).
type DataType int

const (
	Bool DataType = iota
	Int32
	Int
	Half
	BFloat16
	Float
	Double
	ComplexFloat
	ComplexDouble
	UInt32
	UInt64
	Index
	Pointer
	Array
	Opaque
)

func (d DataType) String() string {
	switch d {
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int:
		return "int64"
	case Half:
		return "half"
	case BFloat16:
		return "bfloat16"
	case Float:
		return "float"
	case Double:
		return "double"
	case ComplexFloat:
		return "complex_float"
	case ComplexDouble:
		return "complex_double"
	case UInt32:
		return "uint32"
	case UInt64:
		return "uint64"
	case Index:
		return "index"
	case Pointer:
		return "pointer"
	case Array:
		return "array"
	default:
		return "opaque"
	}
}

// IsFloatingPoint reports whether d is one of the floating-point types.
func (d DataType) IsFloatingPoint() bool {
	switch d {
	case Half, BFloat16, Float, Double:
		return true
	default:
		return false
	}
}

func (d DataType) isComplex() bool { return d == ComplexFloat || d == ComplexDouble }

// rank orders the non-complex scalar types for promotion purposes, per
// spec.md 4.1: Bool < Int32 < Int < Half < BFloat16 < Float < Double. UInt
// variants rank alongside their signed counterpart's byte width but, per
// spec.md 9 ("Open questions"), require an explicit bit-cast roundtrip
// rather than an implicit promotion because no unsigned-safe equivalent
// exists in NVFuser's own ATen-backed promotion semantics; this compiler
// surfaces that as Promote's requiresBitcast result instead of silently
// promoting.
var rank = map[DataType]int{
	Bool:     0,
	Int32:    1,
	UInt32:   1,
	Int:      2,
	UInt64:   2,
	Half:     3,
	BFloat16: 4,
	Float:    5,
	Double:   6,
}

func isUnsigned(d DataType) bool { return d == UInt32 || d == UInt64 }

// Promote computes the result type of a binary numeric operation between
// two operands of type a and b, following the promotion rule set spec.md
// 4.1 requires to match: mixing int and float yields float of the wider
// precision, scalar-on-scalar promotion is commutative, and complex
// variants parallel their real counterparts. requiresBitcast is true when
// one operand is an unsigned type promoting against a differently-signed
// type of the same rank; the caller must insert an explicit bit-cast before
// emitting the promoted expression (see DataType doc comment).
func Promote(a, b DataType) (result DataType, requiresBitcast bool) {
	if a == b {
		return a, false
	}

	if a.isComplex() || b.isComplex() {
		return promoteComplex(a, b), false
	}

	ra, aok := rank[a]
	rb, bok := rank[b]
	if !aok || !bok {
		// Index/Pointer/Array/Opaque never promote against a numeric type;
		// the caller is responsible for rejecting that combination earlier
		// (it is an InvalidInput at expression-construction time).
		if a == Index || b == Index {
			return Index, false
		}
		return a, false
	}

	if ra == rb {
		if isUnsigned(a) != isUnsigned(b) {
			if isUnsigned(a) {
				return a, true
			}
			return b, true
		}
		return a, false
	}
	if ra > rb {
		return a, false
	}
	return b, false
}

func promoteComplex(a, b DataType) DataType {
	if a == ComplexDouble || b == ComplexDouble || a == Double || b == Double {
		return ComplexDouble
	}
	return ComplexFloat
}
