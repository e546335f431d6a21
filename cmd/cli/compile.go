package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/zerfoo/fusegen/compiler"
	"github.com/zerfoo/fusegen/device"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/runtimeinfo"
)

// CompileCommand is a development aid, not part of the compiler core: it
// runs schedule_and_lower against a single-input pointwise fixture fusion
// and prints the resulting kernel summary, for poking at the pipeline
// from a shell without writing a Go test.
type CompileCommand struct{}

// NewCompileCommand returns the compile debug command.
func NewCompileCommand() *CompileCommand { return &CompileCommand{} }

func (c *CompileCommand) Name() string { return "compile" }

func (c *CompileCommand) Description() string {
	return "schedule and lower a fixture fusion, printing the kernel summary"
}

func (c *CompileCommand) Usage() string {
	return "compile [--device ID] [--size N]"
}

func (c *CompileCommand) Examples() []string {
	return []string{"compile --device cuda:sm80 --size 1024"}
}

func (c *CompileCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	deviceID := fs.String("device", "cuda:sm80", "device capability id")
	size := fs.Int64("size", 256, "fixture input extent")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cap, err := device.Get(*deviceID)
	if err != nil {
		return fmt.Errorf("unknown device %q: %w", *deviceID, err)
	}

	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, *size)}, nil, ir.Float)
	if err := f.AddInput(ir.TensorOperand(a)); err != nil {
		return err
	}
	out, err := ir.NewUnaryExpr(f, "neg", a)
	if err != nil {
		return err
	}
	if err := f.AddOutput(ir.TensorOperand(out)); err != nil {
		return err
	}

	inputs := []runtimeinfo.InputMetadata{{Tensor: a, Shape: []int64{*size}, Strides: []int64{1}}}

	result, err := compiler.New().ScheduleAndLower(f, cap, inputs, compiler.Options{})
	if err != nil {
		return fmt.Errorf("schedule_and_lower failed: %w", err)
	}

	fmt.Printf("heuristic:  %s\n", result.Kind)
	fmt.Printf("index type: %s\n", result.Kernel.IndexType)
	fmt.Printf("statements: %d\n", len(result.Kernel.Stmts))
	fmt.Printf("grid dims:  %v\n", result.Kernel.GridDimensions)
	return nil
}
