// Package device models the GPU device-capability query the core consumes
// from its collaborator per spec.md 6: sm_major/sm_minor, per-block shared
// memory and register limits, warp size, and the max grid dimensions, plus
// a buffer allocator used by the executor's output allocation.
package device

import (
	"fmt"
	"sync"
)

// Capability is the result of device_capability(): the fixed hardware
// limits schedulers gate their decisions on (cp.async availability,
// persistent-buffer shared-memory budget, grid-Y split threshold, ...).
type Capability struct {
	ID string

	SMMajor, SMMinor int

	MaxShmemPerBlock int // bytes, opt-in dynamic shared memory limit
	MaxRegsPerThread int
	WarpSize         int
	MaxGrid          [3]int
}

// SM returns the compute-capability number as major*10+minor (e.g. 80 for
// sm_80), the form schedulers compare against MinCpAsyncSM-style thresholds.
func (c Capability) SM() int { return c.SMMajor*10 + c.SMMinor }

var (
	devices      = make(map[string]Capability)
	devicesMutex sync.RWMutex
)

func register(c Capability) {
	devicesMutex.Lock()
	defer devicesMutex.Unlock()
	devices[c.ID] = c
}

// Get returns a registered device's capability by ID. Returns an error if
// no device with that ID is registered.
func Get(id string) (Capability, error) {
	devicesMutex.RLock()
	defer devicesMutex.RUnlock()
	c, ok := devices[id]
	if !ok {
		return Capability{}, fmt.Errorf("device not found: %s", id)
	}
	return c, nil
}

// Register adds or replaces a device capability profile, for callers
// binding to a device this package does not ship a built-in profile for.
func Register(c Capability) { register(c) }

func init() {
	register(Capability{ID: "cuda:sm70", SMMajor: 7, SMMinor: 0, MaxShmemPerBlock: 96 * 1024, MaxRegsPerThread: 255, WarpSize: 32, MaxGrid: [3]int{2147483647, 65535, 65535}})
	register(Capability{ID: "cuda:sm75", SMMajor: 7, SMMinor: 5, MaxShmemPerBlock: 64 * 1024, MaxRegsPerThread: 255, WarpSize: 32, MaxGrid: [3]int{2147483647, 65535, 65535}})
	register(Capability{ID: "cuda:sm80", SMMajor: 8, SMMinor: 0, MaxShmemPerBlock: 163 * 1024, MaxRegsPerThread: 255, WarpSize: 32, MaxGrid: [3]int{2147483647, 65535, 65535}})
	register(Capability{ID: "cuda:sm86", SMMajor: 8, SMMinor: 6, MaxShmemPerBlock: 99 * 1024, MaxRegsPerThread: 255, WarpSize: 32, MaxGrid: [3]int{2147483647, 65535, 65535}})
	register(Capability{ID: "cuda:sm90", SMMajor: 9, SMMinor: 0, MaxShmemPerBlock: 227 * 1024, MaxRegsPerThread: 255, WarpSize: 32, MaxGrid: [3]int{2147483647, 65535, 65535}})
}
