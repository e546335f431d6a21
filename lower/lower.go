package lower

import (
	"github.com/zerfoo/fusegen/domaingraph"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kir"
	"github.com/zerfoo/fusegen/runtimeinfo"
)

// KernelSummary is the result of lowering a scheduled fusion: the finished
// statement tree plus the two pieces of bind-time information the executor
// and emitter both need and that only come out of lowering itself (the
// chosen index type, and the substitution map from symbolic extent to
// canonical metadata lookup).
type KernelSummary struct {
	Stmts          []kir.Stmt
	IndexType      ir.DataType
	SizeSubst      map[*ir.Value]*ir.Value
	GridSyncBytes  int
	GridDimensions [3]int
}

// Run lowers f's scheduled expressions into a KernelSummary, applying the
// ten passes spec.md 4.9 orders: symbolic size replacement, allocation
// placement, initialization insertion, predicate insertion, index-type
// lowering, synchronization insertion, grid-sync insertion, circular buffer
// expansion, memory aliasing, and finally any user-registered hooks.
func Run(f *ir.Fusion, idm *domaingraph.IdModel, ri *runtimeinfo.RuntimeInfo, opts Options, hooks []Hook) (*KernelSummary, error) {
	exprs, err := SortExpressions(f)
	if err != nil {
		return nil, err
	}

	subst, err := ReplaceSymbolicSizes(f, idm)
	if err != nil {
		return nil, err
	}

	allocs := AllocationPlacement(exprs)
	allocs = InitializationInsertion(allocs, exprs)

	body, err := PredicateInsertion(exprs, idm, ri)
	if err != nil {
		return nil, err
	}

	stmts := append(allocs, body...)

	var indexType ir.DataType
	if opts.ForceIndexType != nil {
		ri.ForceIndexType(*opts.ForceIndexType)
	}
	indexType, err = indexTypeOf(stmts, ri)
	if err != nil {
		return nil, err
	}

	stmts = SynchronizationInsertion(stmts)
	stmts = GridSyncInsertion(stmts)
	stmts = CircularBufferExpansion(stmts)
	stmts = MemoryAliasing(stmts)

	stmts, err = RunHooks(stmts, hooks)
	if err != nil {
		return nil, err
	}

	gridDim := ri.Capability().MaxGrid
	var syncTypes []ir.ParallelType
	kir.WalkStmts(stmts, func(s kir.Stmt) {
		if s.Kind == kir.StmtGridSync {
			syncTypes = s.SyncParallelTypes
		}
	})

	return &KernelSummary{
		Stmts:          stmts,
		IndexType:      indexType,
		SizeSubst:      subst,
		GridSyncBytes:  getGridSyncBufferSize(gridDim, syncTypes),
		GridDimensions: gridDim,
	}, nil
}

// indexTypeOf collects every StmtTensorIndex's flat-index Value across
// stmts and retypes them via IndexTypeLowering, returning the index type
// chosen.
func indexTypeOf(stmts []kir.Stmt, ri *runtimeinfo.RuntimeInfo) (ir.DataType, error) {
	var indices []*ir.Value
	kir.WalkStmts(stmts, func(s kir.Stmt) {
		if s.Kind == kir.StmtTensorIndex && s.FlatIndex != nil {
			indices = append(indices, s.FlatIndex)
		}
	})
	return IndexTypeLowering(ri, indices)
}
