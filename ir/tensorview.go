package ir

// MemoryType is the storage class of a TensorView's backing buffer.
type MemoryType int

const (
	Global MemoryType = iota
	Shared
	Local
	TensorMemory // Hopper/Blackwell "tensor memory", tracked; no scheduler in this module assigns it
)

func (m MemoryType) String() string {
	switch m {
	case Shared:
		return "shared"
	case Local:
		return "local"
	case TensorMemory:
		return "tmem"
	default:
		return "global"
	}
}

// CacheOp distinguishes the kind of load/store instruction a cacheBefore /
// cacheAfter inserted tensor should use.
type CacheOp int

const (
	CachePlain CacheOp = iota
	CacheCpAsync
	CacheLdMatrix
	CacheStMatrix
	CacheCpAsyncBulkTensorTile
)

// ComputeAtPosition records the loop depth (an index into a consumer's loop
// domain) at which a TensorView is inlined into that consumer.
type ComputeAtPosition struct {
	Consumer *TensorView
	Position int
}

// AliasType classifies how a fusion output's storage relates to its inputs,
// per spec.md 4.11. The zero value, AliasNew, is a fusion output with its
// own freshly allocated buffer; most outputs never set anything else.
type AliasType int

const (
	AliasNew AliasType = iota
	AliasReuseBuffer
	AliasEvaluate
)

func (a AliasType) String() string {
	switch a {
	case AliasReuseBuffer:
		return "reuse_buffer"
	case AliasEvaluate:
		return "evaluate"
	default:
		return "new"
	}
}

// TensorView is a TensorDomain plus the storage and scheduling attributes
// that make it a concrete kernel tensor: data type, memory type, an
// optional memory-type-specific attribute (circular-buffer depth), and the
// compute-at position it has been inlined to.
type TensorView struct {
	id     NodeID
	fusion *Fusion

	domain *TensorDomain
	dtype  DataType

	memoryType MemoryType
	cacheOp    CacheOp

	circularBufferDepth int // 0 = not circular-buffered, 2 = double-buffer, >2 = mbarrier pipeline

	computeAt *ComputeAtPosition

	definition *Expression // nil for a fusion input
	isFusionInput  bool
	isFusionOutput bool

	aliasType  AliasType
	aliasInput *TensorView // set for AliasReuseBuffer and AliasEvaluate

	name string
}

// ID returns the node's identity within its owning Fusion.
func (tv *TensorView) ID() NodeID { return tv.id }

// Fusion returns the Fusion that owns this TensorView.
func (tv *TensorView) Fusion() *Fusion { return tv.fusion }

// Domain returns the TensorView's TensorDomain.
func (tv *TensorView) Domain() *TensorDomain { return tv.domain }

// DType returns the element data type.
func (tv *TensorView) DType() DataType { return tv.dtype }

// MemoryType returns the current storage class.
func (tv *TensorView) MemoryType() MemoryType { return tv.memoryType }

// SetMemoryType changes the storage class. Scheduler primitive
// setMemoryType (spec.md 4.3) is a thin wrapper that also triggers
// additional-sync bookkeeping in the owning schedule.
func (tv *TensorView) SetMemoryType(t MemoryType) { tv.memoryType = t }

// CacheOp returns the load/store instruction kind this tensor was created
// with via cacheBefore/cacheAfter.
func (tv *TensorView) CacheOp() CacheOp { return tv.cacheOp }

// SetCacheOp records the load/store instruction kind. Called by the
// scheduler's cacheBefore/cacheAfter primitives after creating the
// intermediate tensor.
func (tv *TensorView) SetCacheOp(op CacheOp) { tv.cacheOp = op }

// CircularBufferDepth returns the requested pipeline depth, or 0 if this
// tensor is not circular-buffered.
func (tv *TensorView) CircularBufferDepth() int { return tv.circularBufferDepth }

// SetCircularBufferDepth requests multi-stage buffering for producer
// pipelining; depth 2 is a double buffer.
func (tv *TensorView) SetCircularBufferDepth(depth int) { tv.circularBufferDepth = depth }

// ComputeAt returns the inlining position set by computeAt/inlineAt, or nil
// if this tensor has not been inlined into any consumer.
func (tv *TensorView) ComputeAt() *ComputeAtPosition { return tv.computeAt }

// SetComputeAt records the inlining position.
func (tv *TensorView) SetComputeAt(pos *ComputeAtPosition) { tv.computeAt = pos }

// Definition returns the Expression that produces this tensor, or nil if it
// is a fusion input.
func (tv *TensorView) Definition() *Expression { return tv.definition }

// IsFusionInput reports whether this tensor was registered as a Fusion input.
func (tv *TensorView) IsFusionInput() bool { return tv.isFusionInput }

// IsFusionOutput reports whether this tensor was registered as a Fusion output.
func (tv *TensorView) IsFusionOutput() bool { return tv.isFusionOutput }

// Name returns the tensor's debug name.
func (tv *TensorView) Name() string { return tv.name }

// SetName sets the tensor's debug name.
func (tv *TensorView) SetName(n string) { tv.name = n }

// NewTensorView creates a TensorView over a fresh root TensorDomain built
// from rootExtents, each becoming an Iteration axis (or Reduction if the
// corresponding entry of reductionAxes is true).
func NewTensorView(f *Fusion, rootExtents []*Value, reductionAxes []bool, dtype DataType) *TensorView {
	root := make([]*IterDomain, len(rootExtents))
	for i, e := range rootExtents {
		it := Iteration
		if reductionAxes != nil && i < len(reductionAxes) && reductionAxes[i] {
			it = Reduction
		}
		root[i] = NewRootIterDomain(f, e, it)
	}
	td := NewTensorDomain(f, root)
	tv := &TensorView{id: f.own(), fusion: f, domain: td, dtype: dtype, memoryType: Global}
	f.tensorViews = append(f.tensorViews, tv)
	return tv
}

// MarkFusionInput flags this TensorView as a Fusion input.
func (tv *TensorView) MarkFusionInput() { tv.isFusionInput = true }

// MarkFusionOutput flags this TensorView as a Fusion output.
func (tv *TensorView) MarkFusionOutput() { tv.isFusionOutput = true }

// SetDefinition records the Expression that produces this tensor.
func (tv *TensorView) SetDefinition(e *Expression) { tv.definition = e }

// AliasType returns how this tensor's output storage relates to a fusion
// input, as set by MarkAlias.
func (tv *TensorView) AliasType() AliasType { return tv.aliasType }

// AliasInput returns the fusion input this tensor aliases, or nil for
// AliasNew outputs.
func (tv *TensorView) AliasInput() *TensorView { return tv.aliasInput }

// MarkAlias declares tv as an output that reuses input's storage rather
// than allocating its own: AliasReuseBuffer returns input directly, and
// AliasEvaluate computes tv at output time and validates it as a view of
// input. Called by fusion construction code (markAliasOutput /
// aliasOutputToInput in the original), not by the executor.
func (tv *TensorView) MarkAlias(t AliasType, input *TensorView) {
	tv.aliasType = t
	tv.aliasInput = input
}
