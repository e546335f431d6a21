package lower

import "github.com/zerfoo/fusegen/ir"

// Options are the lowering-time knobs spec.md 6 exposes to the caller of
// schedule_and_lower.
type Options struct {
	// ForceIndexType overrides runtimeinfo's automatic int32/int64 choice
	// when non-nil.
	ForceIndexType *ir.DataType
	MaxRRegCount   int
	WarnRegisterSpill     bool
	FillAllocationWithNaN bool
	DisableKernelReuse    bool
	FunctionTrace         []string
}
