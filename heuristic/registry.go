package heuristic

import (
	"errors"
	"fmt"

	"github.com/zerfoo/fusegen/domaingraph"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
	"github.com/zerfoo/fusegen/runtimeinfo"
	"github.com/zerfoo/fusegen/schedule"
)

// Params is a marker interface implemented by every scheduler's
// heuristic-parameter struct (PointwiseParams, MatmulParams, ...).
type Params interface{ isHeuristicParams() }

// Scheduler is one entry of the registry: the four collaborator methods
// spec.md 4.4 names.
type Scheduler interface {
	Kind() Kind
	CanScheduleCompileTime(f *ir.Fusion) bool
	CanScheduleRunTime(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) bool
	ComputeHeuristics(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) (Params, error)
	Schedule(f *ir.Fusion, sch *schedule.Scheduler, params Params) error
}

// Registry dispatches to the first Scheduler whose compile-time and
// run-time gates both return true, in the fixed priority order spec.md 4.4
// mandates.
type Registry struct {
	entries map[Kind]Scheduler
	order   []Kind
}

// NewRegistry builds the registry with the default scheduler set and fixed
// dispatch order (ExprEval -> NoOp -> Matmul -> Transpose ->
// InnerPersistent -> OuterPersistent -> InnerOuterPersistent -> Reduction
// -> PointWise).
func NewRegistry() *Registry {
	r := &Registry{entries: map[Kind]Scheduler{}}
	for _, s := range []Scheduler{
		newExprEvalScheduler(),
		newNoOpScheduler(),
		newMatmulScheduler(),
		newTransposeScheduler(),
		newInnerPersistentScheduler(),
		newOuterPersistentScheduler(),
		newInnerOuterPersistentScheduler(),
		newReductionScheduler(),
		newPointwiseScheduler(),
	} {
		r.entries[s.Kind()] = s
		r.order = append(r.order, s.Kind())
	}
	return r
}

func hasOp(f *ir.Fusion, ops ...ir.ExprOp) bool {
	want := map[ir.ExprOp]bool{}
	for _, op := range ops {
		want[op] = true
	}
	for _, e := range f.Expressions() {
		if want[e.Op()] {
			return true
		}
	}
	return false
}

// checkHardRejections implements spec.md 4.4's early-NO list that applies
// regardless of which scheduler is under consideration.
func checkHardRejections(f *ir.Fusion, kind Kind) error {
	if _, err := domaingraph.Build(f, nil); err != nil {
		if errors.Is(err, kerr.InvalidInput) {
			return fmt.Errorf("self-mapping present in ID graph: %w", kerr.SchedulerRejection)
		}
		return err
	}
	connected, err := domaingraph.WeaklyConnected(f)
	if err != nil {
		return err
	}
	if !connected {
		return fmt.Errorf("fusion dependency graph is not weakly connected: %w", kerr.SchedulerRejection)
	}
	if hasOp(f, ir.OpMatMul, ir.OpLinear, ir.OpMma) && kind != Matmul {
		return fmt.Errorf("matmul op present, only the matmul scheduler may run: %w", kerr.SchedulerRejection)
	}
	if hasOp(f, ir.OpSdpa) && kind != ExprEval {
		return fmt.Errorf("sdpa op present, only the expression-eval scheduler may run: %w", kerr.SchedulerRejection)
	}
	if hasOp(f, ir.OpResharding) {
		return fmt.Errorf("resharding (multi-device) op present, no single-device scheduler may run: %w", kerr.SchedulerRejection)
	}
	return nil
}

// Dispatch tries every scheduler in fixed priority order and returns the
// first whose compile-time and run-time gates both accept. A hard
// rejection (self-mapping, disconnected graph, matmul/sdpa/resharding
// exclusivity) rules out the candidate it was raised for and Dispatch moves
// on to the next one; SchedulerRejection is returned once every candidate
// has been ruled out.
func (r *Registry) Dispatch(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) (Kind, Params, error) {
	for _, kind := range r.order {
		if err := checkHardRejections(f, kind); err != nil {
			if errors.Is(err, kerr.SchedulerRejection) {
				continue
			}
			return 0, nil, err
		}
		s := r.entries[kind]
		if !s.CanScheduleCompileTime(f) {
			continue
		}
		if !s.CanScheduleRunTime(f, ri, summary) {
			continue
		}
		params, err := s.ComputeHeuristics(f, ri, summary)
		if err != nil {
			return 0, nil, err
		}
		return kind, params, nil
	}
	return 0, nil, fmt.Errorf("every registered scheduler rejected this fusion: %w", kerr.SchedulerRejection)
}

// Scheduler returns the registered Scheduler for kind, or nil.
func (r *Registry) Scheduler(kind Kind) Scheduler { return r.entries[kind] }
