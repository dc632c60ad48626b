package uthreads

import "unsafe"

// ThreadParker is the machine-context primitive of §4.1: it parks the
// calling goroutine (capture + suspend) and later readies it (restore),
// one parker per TCB. Unlike the teacher's ThreadParker — which queues an
// unbounded number of waiters behind a single lock-free list, because many
// ZenQ readers can legitimately pile up on one slot — a logical thread has
// exactly one goroutine ever waiting on its parker at a time, so no queue
// is needed here: a single goroutine pointer is enough.
type ThreadParker struct {
	g unsafe.Pointer // set just before Park; cleared by Ready
}

// NewThreadParker returns a parker for a not-yet-started logical thread.
func NewThreadParker() *ThreadParker {
	return new(ThreadParker)
}

// Park suspends the calling goroutine until a matching Ready call. It must
// be called by the goroutine it parks (there is no cross-goroutine park in
// the runtime's model).
func (tp *ThreadParker) Park() {
	tp.g = GetG()
	mcall(fastPark)
}

// seedPark is Park's bootstrap variant for a just-spawned trampoline
// goroutine (§4.1's "seed" step). It records its g and signals seeded
// before actually parking, so the caller that launched this goroutine can
// wait for the handshake instead of racing Ready against a Park that
// hasn't happened yet — without it, a dispatch landing between `go
// trampoline(...)` and the trampoline's first Park would find tp.g still
// nil and Ready would silently drop the wakeup.
func (tp *ThreadParker) seedPark(seeded chan<- struct{}) {
	tp.g = GetG()
	close(seeded)
	mcall(fastPark)
}

// Ready wakes the goroutine parked on this ThreadParker, if any. It spins
// briefly waiting for the target to actually land in _Gwaiting — Park's
// mcall(fastPark) hasn't necessarily completed the status transition the
// instant the scheduler decides to dispatch that thread next — mirroring
// thread_parker.go's Ready loop.
func (tp *ThreadParker) Ready() {
	gp := tp.g
	if gp == nil {
		return
	}
	tp.g = nil
	iter := 0
	for readgstatus(gp) != _Gwaiting {
		if runtime_canSpin(iter) {
			iter++
			runtime_doSpin()
		} else {
			goyield()
		}
	}
	runtime_goready(gp, 1)
}

//go:linkname goyield runtime.goyield
func goyield()
