// Package kir is the kernel intermediate representation produced by the
// lowering passes: ForLoop/IfThenElse control flow, Allocate, synchronization
// primitives and indexing nodes ready for textual emission by the (external)
// emitter collaborator.
//
// As in package ir, node kinds are a small closed set dispatched on a tag
// rather than through an interface hierarchy: Stmt.Kind. KIR's node set is
// fixed once lowering begins, so a tag is simpler than either a sealed
// interface or a full visitor double-dispatch scheme, and it is what the
// traversal helpers in package lower already need to switch on.
package kir

import "github.com/zerfoo/fusegen/ir"

// StmtKind tags the kind of KIR statement/expression.
type StmtKind int

const (
	StmtExpr StmtKind = iota
	StmtForLoop
	StmtIfThenElse
	StmtAllocate
	StmtBlockSync
	StmtGridSync
	StmtTensorIndex
	StmtBarrierInit
	StmtBarrierArrive
	StmtBarrierWait
	StmtBarrierInvalidate
	StmtGridReduction
	StmtGridBroadcast
	StmtVectorizedWelford
	StmtRuntimeAssert
)

// Stmt is a single KIR node. Only the fields relevant to Kind are populated;
// this mirrors the attribute-bag shape of ir.Expression rather than one
// struct type per kind, which keeps ForLoop.Body (a []Stmt) a single
// concrete slice type instead of a slice of interfaces.
type Stmt struct {
	Kind StmtKind

	// StmtExpr
	Expr *ir.Expression

	// StmtForLoop
	LoopID *ir.IterDomain
	Index  *ir.Value
	Body   []Stmt

	// StmtIfThenElse
	Predicate *ir.Value
	Then      []Stmt
	Else      []Stmt

	// StmtAllocate
	Buffer          *ir.TensorView
	AllocMemoryType ir.MemoryType
	Shape           []*ir.Value
	AliasOf         *Stmt // points at another StmtAllocate when aliased
	ZeroInit        bool
	ResetsToZero    bool
	AddressSymbol   *ir.Value
	ByteOffset      int // shared-memory arena offset, 16-byte aligned

	// StmtBlockSync
	Aligned   bool
	WarHazard bool

	// StmtGridSync
	SyncParallelTypes []ir.ParallelType
	SyncBuffer        *ir.TensorView

	// StmtTensorIndex
	View      *ir.TensorView
	FlatIndex *ir.Value

	// StmtBarrier*
	BarrierStage int
	BarrierVar   *ir.Value

	// StmtGridReduction / StmtGridBroadcast
	ReductionExpr *ir.Expression

	// StmtVectorizedWelford
	WelfordExpr *ir.Expression
	VectorWidth int

	// StmtRuntimeAssert (reuses Predicate): a one-shot guard hoisted above
	// any loop nest, evaluated once against bound runtime extents rather
	// than per iteration.
	Message string
}

// ForLoop constructs a StmtForLoop over loopID with the given loop-index
// symbol and body.
func ForLoop(loopID *ir.IterDomain, index *ir.Value, body []Stmt) Stmt {
	return Stmt{Kind: StmtForLoop, LoopID: loopID, Index: index, Body: body}
}

// IfThenElse constructs a StmtIfThenElse with the given predicate and
// then/else bodies.
func IfThenElse(pred *ir.Value, then, els []Stmt) Stmt {
	return Stmt{Kind: StmtIfThenElse, Predicate: pred, Then: then, Else: els}
}

// Allocate constructs a StmtAllocate for buffer in the given memory type.
func Allocate(buffer *ir.TensorView, memType ir.MemoryType, shape []*ir.Value) Stmt {
	return Stmt{Kind: StmtAllocate, Buffer: buffer, AllocMemoryType: memType, Shape: shape}
}

// BlockSync constructs a StmtBlockSync.
func BlockSync(aligned, warHazard bool) Stmt {
	return Stmt{Kind: StmtBlockSync, Aligned: aligned, WarHazard: warHazard}
}

// GridSync constructs a StmtGridSync over the given unsynchronized parallel
// types, backed by syncBuffer.
func GridSync(types []ir.ParallelType, syncBuffer *ir.TensorView) Stmt {
	return Stmt{Kind: StmtGridSync, SyncParallelTypes: types, SyncBuffer: syncBuffer}
}

// TensorIndex constructs a StmtTensorIndex referencing view at flatIndex.
func TensorIndex(view *ir.TensorView, flatIndex *ir.Value) Stmt {
	return Stmt{Kind: StmtTensorIndex, View: view, FlatIndex: flatIndex}
}

// RuntimeAssert constructs a StmtRuntimeAssert: a check hoisted to run once
// at kernel entry, rather than inside any loop, that aborts execution with
// message when pred does not hold. Used where a per-iteration predicate
// can't apply -- a vectorized load/store always touches its full width, so
// a non-divisible vectorized split is guarded once at entry instead.
func RuntimeAssert(pred *ir.Value, message string) Stmt {
	return Stmt{Kind: StmtRuntimeAssert, Predicate: pred, Message: message}
}

// WalkStmts invokes fn on every Stmt in the tree rooted at stmts, including
// nested ForLoop/IfThenElse bodies, in lowered (pre-order) sequence. This is
// the scope-stack-free traversal Design Notes requires in place of a
// visitor that stores mutable scope state as a field: callers that need a
// scope stack build one locally (see lower.Walker).
func WalkStmts(stmts []Stmt, fn func(Stmt)) {
	for _, s := range stmts {
		fn(s)
		switch s.Kind {
		case StmtForLoop:
			WalkStmts(s.Body, fn)
		case StmtIfThenElse:
			WalkStmts(s.Then, fn)
			WalkStmts(s.Else, fn)
		}
	}
}
