// Package kerr defines the sentinel error kinds raised across the fusion
// compiler pipeline (spec section "Error Handling Design"). Call sites wrap
// one of these with fmt.Errorf("...: %w", kerr.X) so callers can use
// errors.Is without depending on a specific pass's message format.
package kerr

import "errors"

var (
	// InvalidInput marks a malformed IR: a literal scalar added as a fusion
	// input, self-mapped IDs, broadcast of a non-broadcast ID, or a reshape
	// whose totals do not match.
	InvalidInput = errors.New("invalid input")

	// InvalidSchedule marks a schedule the registry cannot lower, such as
	// merging a non-broadcast and a broadcast ID and then parallelizing it.
	InvalidSchedule = errors.New("invalid schedule")

	// UnsupportedHardware marks a schedule that requires an instruction not
	// available on the target SM (cp.async below SM 8.0, cp.async.bulk below
	// SM 9.0, bf16 below SM 8.0).
	UnsupportedHardware = errors.New("unsupported hardware")

	// ResourceOverflow marks shared-memory or register-file allocation that
	// exceeds the device limit, or a grid dimension beyond 65535 without a
	// grid-Y split.
	ResourceOverflow = errors.New("resource overflow")

	// SharedMemoryOverflow is a ResourceOverflow specialization for a
	// persistent buffer that cannot fit within the per-block shared-memory
	// optin limit.
	SharedMemoryOverflow = errors.New("shared memory overflow")

	// IndexTypeOverflow marks int32 requested while input metadata demands
	// int64.
	IndexTypeOverflow = errors.New("index type overflow")

	// VectorizationStrideViolation marks a run-time validation failure of a
	// vectorized non-divisible split, or a misaligned input pointer.
	VectorizationStrideViolation = errors.New("vectorization stride violation")

	// NonUniquelyConcretizedBroadcast marks a broadcast concretized to
	// multiple mismatched extents in a way no scheduler can handle.
	NonUniquelyConcretizedBroadcast = errors.New("non-uniquely concretized broadcast")

	// SchedulerRejection marks that every registered scheduler answered NO;
	// the caller must segment the fusion and retry per-segment.
	SchedulerRejection = errors.New("scheduler rejection")
)
