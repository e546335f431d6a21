// Package compiler implements the external interface spec.md 6 exposes:
// schedule_and_lower, infer_output_shapes, allocate_outputs and
// choose_heuristic, wiring together the heuristic registry, scheduler,
// lowering pipeline and executor already built by their own packages.
package compiler

import (
	"fmt"

	"github.com/zerfoo/fusegen/cache"
	"github.com/zerfoo/fusegen/device"
	"github.com/zerfoo/fusegen/executor"
	"github.com/zerfoo/fusegen/heuristic"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/lower"
	"github.com/zerfoo/fusegen/runtimeinfo"
	"github.com/zerfoo/fusegen/schedule"
)

// LoweredKernel is schedule_and_lower's result: the heuristic chosen, the
// parameters it computed, and the finished lowering output.
type LoweredKernel struct {
	Kind   heuristic.Kind
	Params heuristic.Params
	Kernel *lower.KernelSummary
}

// Compiler wires a heuristic registry, an optional persisted
// HeuristicCache and an optional Logger into the four operations spec.md
// 6 names. The zero value is unusable; use New.
type Compiler struct {
	Registry *heuristic.Registry
	Cache    *cache.HeuristicCache // nil disables caching
	Logger   Logger                // nil disables tracing
}

// New returns a Compiler with the default heuristic registry, no cache
// and no logging.
func New() *Compiler {
	return &Compiler{Registry: heuristic.NewRegistry()}
}

func (c *Compiler) logger() Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return noopLogger{}
}

// Bind resolves concrete input metadata against f, the common first step
// of every operation below.
func (c *Compiler) Bind(f *ir.Fusion, capability device.Capability, inputs []runtimeinfo.InputMetadata) (*runtimeinfo.RuntimeInfo, error) {
	return runtimeinfo.Bind(f, capability, inputs)
}

// ChooseHeuristic implements choose_heuristic(Fusion, Inputs) ->
// HeuristicKind.
func (c *Compiler) ChooseHeuristic(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo) (heuristic.Kind, error) {
	l := c.logger()
	l.Enter("choose_heuristic")
	defer l.Exit("choose_heuristic")

	summary, err := heuristic.Build(f, nil)
	if err != nil {
		l.Error("choose_heuristic", err)
		return 0, err
	}
	kind, _, err := c.Registry.Dispatch(f, ri, summary)
	if err != nil {
		l.Error("choose_heuristic", err)
		return 0, err
	}
	return kind, nil
}

// ScheduleAndLower implements schedule_and_lower(Fusion, Inputs,
// Options) -> LoweredKernel: it dispatches a heuristic (consulting and
// refreshing the cache unless disabled), applies the chosen schedule to
// f, then runs the lowering pipeline.
func (c *Compiler) ScheduleAndLower(f *ir.Fusion, capability device.Capability, inputs []runtimeinfo.InputMetadata, opts Options) (*LoweredKernel, error) {
	l := c.logger()
	l.Enter("schedule_and_lower")
	defer l.Exit("schedule_and_lower")

	ri, err := c.Bind(f, capability, inputs)
	if err != nil {
		return nil, err
	}

	l.Enter("dispatch_heuristic")
	summary, err := heuristic.Build(f, nil)
	if err != nil {
		l.Error("dispatch_heuristic", err)
		return nil, err
	}

	fp := Fingerprint(f, inputs)
	if opts.DisableKernelReuse && c.Cache != nil {
		c.Cache.Invalidate(capability.ID)
	}

	kind, params, err := c.dispatch(f, ri, summary, capability, fp, opts)
	if err != nil {
		l.Error("dispatch_heuristic", err)
		return nil, err
	}
	l.Exit("dispatch_heuristic")

	scheduler := c.Registry.Scheduler(kind)
	if scheduler == nil {
		return nil, fmt.Errorf("no scheduler registered for heuristic kind %s", kind)
	}

	sch := schedule.New(f, summary.IdModel, capability.SMMajor, capability.SMMinor)

	l.Enter("schedule")
	if err := scheduler.Schedule(f, sch, params); err != nil {
		l.Error("schedule", err)
		return nil, err
	}
	l.Exit("schedule")

	l.Enter("lower")
	kernel, err := lower.Run(f, summary.IdModel, ri, toLowerOptions(opts), nil)
	if err != nil {
		l.Error("lower", err)
		return nil, err
	}
	l.Exit("lower")

	return &LoweredKernel{Kind: kind, Params: params, Kernel: kernel}, nil
}

// dispatch returns the heuristic kind and params to schedule with,
// consulting c.Cache first when caching is enabled. A cache hit still
// recomputes Params from the current Summary: only the kind is persisted
// (cache.Entry), since Params encodes shape-specific tiling decisions a
// cache hit's whole point is to skip re-deriving through a full registry
// scan, not to skip validating the run-time gate of the kind it already
// knows is right.
func (c *Compiler) dispatch(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *heuristic.Summary, capability device.Capability, fingerprint string, opts Options) (heuristic.Kind, heuristic.Params, error) {
	if c.Cache != nil && !opts.DisableKernelReuse {
		if entry, ok := c.Cache.Get(capability.ID, fingerprint); ok {
			if sched := c.Registry.Scheduler(entry.Kind); sched != nil && sched.CanScheduleRunTime(f, ri, summary) {
				params, err := sched.ComputeHeuristics(f, ri, summary)
				if err != nil {
					return 0, nil, err
				}
				return entry.Kind, params, nil
			}
		}
	}

	kind, params, err := c.Registry.Dispatch(f, ri, summary)
	if err != nil {
		return 0, nil, err
	}
	if c.Cache != nil {
		c.Cache.Put(cache.Entry{Device: capability.ID, Fingerprint: fingerprint, Kind: kind})
	}
	return kind, params, nil
}

func toLowerOptions(opts Options) lower.Options {
	lo := lower.Options{
		MaxRRegCount:          opts.MaxRRegCount,
		WarnRegisterSpill:     opts.WarnRegisterSpill,
		FillAllocationWithNaN: opts.FillAllocationWithNaN,
		DisableKernelReuse:    opts.DisableKernelReuse,
		FunctionTrace:         opts.FunctionTrace,
	}
	switch opts.IndexType {
	case IndexTypeInt32:
		t := ir.Int32
		lo.ForceIndexType = &t
	case IndexTypeInt64:
		t := ir.Int
		lo.ForceIndexType = &t
	}
	return lo
}

// InferOutputShapes implements infer_output_shapes(Fusion, Inputs) ->
// [Shape].
func (c *Compiler) InferOutputShapes(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo) ([]executor.OutputPlan, error) {
	return executor.InferOutputShapes(f, ri)
}

// AllocateOutputs implements allocate_outputs(Fusion, ShapeInfo, Device)
// -> [Buffer]. plans is the ShapeInfo from InferOutputShapes; alloc is
// the Device-side allocator.
func (c *Compiler) AllocateOutputs(plans []executor.OutputPlan, ri *runtimeinfo.RuntimeInfo, alloc device.Allocator, fillNaN bool) ([]any, error) {
	return executor.AllocateOutputs(plans, ri, alloc, fillNaN)
}
