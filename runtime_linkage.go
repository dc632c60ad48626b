package uthreads

import (
	"unsafe"
)

// Linking this package directly against the Go runtime gives us access to
// getg()/goready() and the mcall/dropg/casgstatus/schedule steps inside
// gopark, the same primitives the runtime itself uses to put a goroutine to
// sleep and wake it back up. That is exactly the
// "capture a resumable point, suspend, later restore it" contract the
// machine-context primitive in the design needs — parking a goroutine *is*
// a context switch, just one the runtime already knows how to do safely.
//
// Alternative method: hand-rolled assembly context switch over raw stacks,
// as demonstrated in https://github.com/sitano/gsysint. Linking straight
// into the runtime's own park/ready machinery avoids owning that assembly
// ourselves.

//go:linkname getg runtime.getg
func getg() unsafe.Pointer

// GetG returns an opaque handle to the calling goroutine's runtime.g.
func GetG() unsafe.Pointer { return getg() }

//go:linkname runtime_goready runtime.goready
func runtime_goready(gp unsafe.Pointer, traceskip int)

//go:linkname readgstatus runtime.readgstatus
func readgstatus(gp unsafe.Pointer) uint32

//go:linkname mcall runtime.mcall
func mcall(fn func(unsafe.Pointer))

//go:linkname dropg runtime.dropg
func dropg()

//go:linkname casgstatus runtime.casgstatus
func casgstatus(gp unsafe.Pointer, oldval, newval uint32)

//go:linkname schedule runtime.schedule
func schedule()

// Active-spinning support, linked straight from the sync package's own
// internal use of it — lets Ready() briefly spin waiting for a just-parked
// goroutine to actually reach _Gwaiting instead of sleeping.

//go:linkname runtime_canSpin sync.runtime_canSpin
func runtime_canSpin(i int) bool

//go:linkname runtime_doSpin sync.runtime_doSpin
func runtime_doSpin()

// goroutine status values this package inspects/transitions directly.
const (
	_Grunning uint32 = 2
	_Gwaiting uint32 = 4
)

// fastPark drops the calling goroutine straight to _Gwaiting and hands the
// OS thread back to the scheduler, without going through the generic
// gopark machinery's unlock-function indirection. It must run on the g0
// stack, hence mcall.
func fastPark(gp unsafe.Pointer) {
	dropg()
	casgstatus(gp, _Grunning, _Gwaiting)
	schedule()
}
