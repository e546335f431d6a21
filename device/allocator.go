package device

import "fmt"

// Allocator allocates and frees output buffers on behalf of the executor's
// allocate_outputs (spec.md 6). The CPU-backed allocator below is the
// collaborator used by tests and by any host-side reference execution; a
// real CUDA allocator is an external collaborator this package does not
// implement.
type Allocator interface {
	// Allocate reserves size bytes, zero-filled unless fillNaN requests a
	// debug NaN fill (fill_allocation_with_nan).
	Allocate(size int, fillNaN bool) (any, error)
	// Free releases a block returned by Allocate.
	Free(ptr any) error
}

type hostAllocator struct{}

// NewHostAllocator returns an Allocator backed by plain Go byte slices, used
// when no device-specific allocator is wired (CPU fallback / tests).
func NewHostAllocator() Allocator { return &hostAllocator{} }

func (a *hostAllocator) Allocate(size int, fillNaN bool) (any, error) {
	if size < 0 {
		return nil, fmt.Errorf("allocation size cannot be negative: %d", size)
	}
	buf := make([]byte, size)
	if fillNaN {
		// 0x7fc00000 repeated is the float32 quiet-NaN bit pattern; used only
		// for the debug fill_allocation_with_nan option so uninitialized
		// float32 reads are visibly wrong instead of zero. Read as float64,
		// the doubled pattern is a large finite value, not a NaN.
		pattern := []byte{0x00, 0x00, 0xc0, 0x7f}
		for i := range buf {
			buf[i] = pattern[i%len(pattern)]
		}
	}
	return buf, nil
}

func (a *hostAllocator) Free(_ any) error { return nil }
