package ir

// ParallelType tags how an IterDomain's loop axis is realized in the
// generated kernel.
type ParallelType int

const (
	Serial ParallelType = iota
	TIDx
	TIDy
	TIDz
	BIDx
	BIDy
	BIDz
	Unroll
	Unswitch
	Vectorize
	MisalignedVectorize
	Group
)

func (p ParallelType) String() string {
	switch p {
	case TIDx:
		return "TIDx"
	case TIDy:
		return "TIDy"
	case TIDz:
		return "TIDz"
	case BIDx:
		return "BIDx"
	case BIDy:
		return "BIDy"
	case BIDz:
		return "BIDz"
	case Unroll:
		return "Unroll"
	case Unswitch:
		return "Unswitch"
	case Vectorize:
		return "Vectorize"
	case MisalignedVectorize:
		return "MisalignedVectorize"
	case Group:
		return "Group"
	default:
		return "Serial"
	}
}

// IsThreadDim reports whether p is a TIDx/y/z block-local parallel type.
func (p ParallelType) IsThreadDim() bool { return p == TIDx || p == TIDy || p == TIDz }

// IsBlockDim reports whether p is a BIDx/y/z grid parallel type.
func (p ParallelType) IsBlockDim() bool { return p == BIDx || p == BIDy || p == BIDz }

// IterType classifies what an IterDomain's iteration means.
type IterType int

const (
	Iteration IterType = iota
	Reduction
	Broadcast
	Symbolic
	Stride
	GatherScatter
	VectorComponent
)

// IdExprKind tags the kind of domain transform that produced a set of
// IterDomains (Design Notes: a tagged variant plus dispatch table replaces
// virtual dispatch across the small, closed set of transform kinds).
type IdExprKind int

const (
	SplitExpr IdExprKind = iota
	MergeExpr
	SwizzleExpr
	Swizzle2DExpr
	ResizeExpr
)

// SwizzleType distinguishes the swizzle function applied by a Swizzle or
// Swizzle2D expr.
type SwizzleType int

const (
	SwizzleXor SwizzleType = iota
	SwizzleCyclicShift
)

// SwizzleMode governs whether a swizzle affects indexing only (Data mode,
// used for shared-memory bank-conflict avoidance while the loop still
// iterates in logical order) or also the loop iteration order (Loop mode).
type SwizzleMode int

const (
	SwizzleData SwizzleMode = iota
	SwizzleLoop
)

// IterDomain represents one axis of a tensor's loop or logical shape.
type IterDomain struct {
	id     NodeID
	fusion *Fusion

	start          *Value
	extent         *Value
	expandedExtent *Value // set only for a broadcast later expanded

	parallelType ParallelType
	iterType     IterType
	isBroadcast  bool
	paddedToWarp bool

	definition *IdExpr // nil for a root ID
}

// ID returns the node's identity within its owning Fusion.
func (d *IterDomain) ID() NodeID { return d.id }

// Fusion returns the Fusion that owns this IterDomain.
func (d *IterDomain) Fusion() *Fusion { return d.fusion }

// Start returns the axis's start offset.
func (d *IterDomain) Start() *Value { return d.start }

// Extent returns the axis's extent (the concretized iteration count).
func (d *IterDomain) Extent() *Value { return d.extent }

// ExpandedExtent returns the post-expand extent for a broadcast ID that has
// been expanded, or nil.
func (d *IterDomain) ExpandedExtent() *Value { return d.expandedExtent }

// SetExpandedExtent marks this broadcast ID as expanded to e.
func (d *IterDomain) SetExpandedExtent(e *Value) { d.expandedExtent = e }

// ParallelType returns the axis's parallel tag.
func (d *IterDomain) ParallelType() ParallelType { return d.parallelType }

// SetParallelType tags the axis with p. Scheduler primitives call this; it
// is exported so the scheduler package (which must not import ir's
// constructors to create new IDs, only mutate existing ones) can reach it.
func (d *IterDomain) SetParallelType(p ParallelType) { d.parallelType = p }

// IterType returns the axis's iteration classification.
func (d *IterDomain) IterType() IterType { return d.iterType }

// SetIterType overrides the axis's iteration classification (used by
// broadcast concretization bookkeeping in the lowering predicate pass).
func (d *IterDomain) SetIterType(t IterType) { d.iterType = t }

// IsBroadcast reports whether this ID was created by Broadcast.
func (d *IterDomain) IsBroadcast() bool { return d.isBroadcast }

// IsReduction reports whether this ID's IterType is Reduction.
func (d *IterDomain) IsReduction() bool { return d.iterType == Reduction }

// PaddedToWarp reports whether the axis is padded to a full warp.
func (d *IterDomain) PaddedToWarp() bool { return d.paddedToWarp }

// SetPaddedToWarp sets the padded-to-warp flag.
func (d *IterDomain) SetPaddedToWarp(v bool) { d.paddedToWarp = v }

// Definition returns the IdExpr that produced this ID, or nil for a root ID.
func (d *IterDomain) Definition() *IdExpr { return d.definition }

// NewRootIterDomain creates a root IterDomain (no defining expression) with
// the given extent, owned by f.
func NewRootIterDomain(f *Fusion, extent *Value, iterType IterType) *IterDomain {
	d := &IterDomain{
		id:       f.own(),
		fusion:   f,
		start:    NewIntConst(f, 0),
		extent:   extent,
		iterType: iterType,
	}
	f.ids = append(f.ids, d)
	return d
}

// NewBroadcastIterDomain creates a root broadcast IterDomain of extent 1.
func NewBroadcastIterDomain(f *Fusion) *IterDomain {
	d := NewRootIterDomain(f, NewIntConst(f, 1), Broadcast)
	d.isBroadcast = true
	return d
}

// IdExpr is the defining expression of the IterDomains it outputs: Split,
// Merge, Swizzle/Swizzle2D or Resize. Every non-root IterDomain has exactly
// one IdExpr as its Definition.
type IdExpr struct {
	id     NodeID
	fusion *Fusion
	kind   IdExprKind

	inputs  []*IterDomain
	outputs []*IterDomain

	// Split
	factor     *Value
	innerSplit bool
	divisible  bool

	// Swizzle / Swizzle2D
	swizzleType SwizzleType
	swizzleMode SwizzleMode

	// Resize
	leftExpand  *Value
	rightExpand *Value
}

// ID returns the node's identity within its owning Fusion.
func (e *IdExpr) ID() NodeID { return e.id }

// Kind returns which domain transform this IdExpr performs.
func (e *IdExpr) Kind() IdExprKind { return e.kind }

// Inputs returns the IterDomains consumed by this transform.
func (e *IdExpr) Inputs() []*IterDomain { return e.inputs }

// Outputs returns the IterDomains produced by this transform.
func (e *IdExpr) Outputs() []*IterDomain { return e.outputs }

// Factor returns the split factor; valid only when Kind is SplitExpr.
func (e *IdExpr) Factor() *Value { return e.factor }

// InnerSplit reports whether Split placed the factor-sized axis inner
// (outer, inner) vs outer (inner, outer); valid only for SplitExpr.
func (e *IdExpr) InnerSplit() bool { return e.innerSplit }

// Divisible reports whether the split's factor evenly divides the parent
// extent at schedule-construction time (a compile-time check against
// symbolic extents; runtime truth is re-checked by the predicate pass when
// the extent is only known at bind time). Valid only for SplitExpr.
func (e *IdExpr) Divisible() bool { return e.divisible }

// SwizzleType returns the swizzle function; valid only for SwizzleExpr/Swizzle2DExpr.
func (e *IdExpr) SwizzleType() SwizzleType { return e.swizzleType }

// SwizzleMode returns whether the swizzle affects indexing only or also loop
// order; valid only for SwizzleExpr/Swizzle2DExpr.
func (e *IdExpr) SwizzleMode() SwizzleMode { return e.swizzleMode }

// LeftExpand returns the left expand amount; valid only for ResizeExpr.
func (e *IdExpr) LeftExpand() *Value { return e.leftExpand }

// RightExpand returns the right expand amount; valid only for ResizeExpr.
func (e *IdExpr) RightExpand() *Value { return e.rightExpand }
