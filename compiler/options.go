package compiler

// IndexTypeMode selects how schedule_and_lower picks the kernel's index
// integer type (spec.md 6, index_type).
type IndexTypeMode int

const (
	// IndexTypeAuto lets runtimeinfo pick int32 vs int64 from the bound
	// tensor extents (the default).
	IndexTypeAuto IndexTypeMode = iota
	IndexTypeInt32
	IndexTypeInt64
)

func (m IndexTypeMode) String() string {
	switch m {
	case IndexTypeInt32:
		return "int32"
	case IndexTypeInt64:
		return "int64"
	default:
		return "auto"
	}
}

// Options are the compile-time knobs spec.md 6 exposes to callers of
// schedule_and_lower: a plain JSON-tagged config struct (cli.BaseConfig,
// PredictCommandConfig are the same shape) rather than any flag/env-binding
// framework.
type Options struct {
	IndexType             IndexTypeMode `json:"index_type"`
	MaxRRegCount          int           `json:"maxrregcount"`
	WarnRegisterSpill     bool          `json:"warn_register_spill"`
	FillAllocationWithNaN bool          `json:"fill_allocation_with_nan"`
	DisableKernelReuse    bool          `json:"disable_kernel_reuse"`

	// FunctionTrace is a list of regular expressions; NewLogger
	// compiles them once and logs entry/exit for every named pipeline
	// stage whose name matches one of them.
	FunctionTrace []string `json:"function_trace"`
}
