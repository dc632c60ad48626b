package uthreads

import (
	"container/list"
	"runtime"
	"sync"

	"github.com/nullfetch/uthreads/slotpool"
)

// scheduler is the process-wide singleton of §3 "Scheduler state": current
// running thread, the monotonic quantum counter, the FIFO ready queue, the
// blocked set, the configured quantum length, and the TCB registry and
// goroutine slot pool it drives dispatch through.
//
// Every public operation takes mu for its entire body, exactly playing the
// role the original's sigprocmask(SIG_BLOCK/SIG_UNBLOCK, SIGVTALRM) pair
// played around each uthread_* call: a single point of serialization for
// all scheduler-owned state (§4.4, §5).
type scheduler struct {
	mu sync.Mutex

	reg   *registry
	slots *slotpool.Pool

	currentTID    int
	totalQuantums int
	quantumUsecs  int

	ready   *list.List             // FIFO of *TCB in StateReady
	blocked map[int]struct{}       // set of tids in StateBlocked
	elemOf  map[int]*list.Element  // tid -> its *list.Element in ready, while READY

	quantumMark int64 // virtual usecs consumed by the process as of the current quantum's start

	// draining is nil until shutdownDrain sets it, so that terminated
	// threads' trampoline goroutines can signal it as they unwind past the
	// terminated check below. Before shutdown that check is a cheap no-op;
	// once set, it is never cleared.
	draining *sync.WaitGroup
}

func newScheduler(maxThreads, quantumUsecs int) *scheduler {
	return &scheduler{
		reg:          newRegistry(maxThreads),
		slots:        slotpool.New(maxThreads),
		quantumUsecs: quantumUsecs,
		ready:        list.New(),
		blocked:      make(map[int]struct{}),
		elemOf:       make(map[int]*list.Element),
	}
}

func (s *scheduler) enqueueReady(t *TCB) {
	t.state = StateReady
	elem := s.ready.PushBack(t)
	s.elemOf[t.id] = elem
}

func (s *scheduler) removeFromReady(id int) bool {
	elem, ok := s.elemOf[id]
	if !ok {
		return false
	}
	s.ready.Remove(elem)
	delete(s.elemOf, id)
	return true
}

func (s *scheduler) popReady() (*TCB, bool) {
	front := s.ready.Front()
	if front == nil {
		return nil, false
	}
	s.ready.Remove(front)
	t := front.Value.(*TCB)
	delete(s.elemOf, t.id)
	return t, true
}

func (s *scheduler) addBlocked(id int) {
	s.blocked[id] = struct{}{}
}

func (s *scheduler) removeBlocked(id int) {
	delete(s.blocked, id)
}

// wakeScan implements §4.4 step 3: for every blocked thread whose wakeAt
// has arrived, clear it; if it wasn't explicitly blocked, promote it back
// to READY. Order among threads waking in the same tick is unspecified, as
// documented.
func (s *scheduler) wakeScan() {
	for id := range s.blocked {
		t, ok := s.reg.lookup(id)
		if !ok {
			continue
		}
		if t.wakeAt != noWake && t.wakeAt <= s.totalQuantums {
			t.wakeAt = noWake
			if !t.explicitlyBlocked {
				s.removeBlocked(id)
				s.enqueueReady(t)
				trace.Debug("wake", "tid", id)
			}
		}
	}
}

// dispatch is the scheduler entry point of §4.4, invoked either
// synchronously (a voluntary yield: sleep, block-self) or from a
// checkpoint that found the virtual quantum elapsed. The caller must hold
// s.mu and must be the goroutine currently occupying currentTID; the
// outgoing TCB's state must already reflect whatever this call represents
// (StateRunning if merely preempted, StateBlocked if the caller already
// transitioned itself before calling dispatch, as Sleep/Block do).
//
// dispatch returns once this same thread is RUNNING again — immediately,
// if nothing else was ready to take its place, or after having been parked
// and later re-readied by a future dispatch on another thread's goroutine.
func (s *scheduler) dispatch() {
	callerID := s.currentTID
	outgoing, _ := s.reg.lookup(callerID)

	s.totalQuantums++
	s.markQuantumStart()
	s.wakeScan()

	if outgoing != nil && outgoing.state == StateRunning {
		s.enqueueReady(outgoing)
	}

	next, ok := s.popReady()
	if !ok {
		// fatalNoRunnableThread calls osExit(1), which never returns in
		// production, so mu is simply never unlocked again. Under a
		// test-stubbed osExit it does return here, and mu must stay held:
		// every caller of dispatch reaches it with a defer sched.mu.Unlock()
		// already armed, so unlocking here too would double-unlock.
		fatalNoRunnableThread()
		return // unreachable outside tests stubbing osExit
	}

	s.currentTID = next.id
	next.state = StateRunning
	next.quantumsRun++
	trace.Debug("dispatch", "from", callerID, "to", next.id, "total_quantums", s.totalQuantums)

	if next.id == callerID {
		// Nothing else was ready; this thread simply keeps running.
		return
	}

	next.parker.Ready()
	s.mu.Unlock()
	outgoing.parker.Park()
	s.mu.Lock()

	if outgoing.terminated {
		// Woken only to be torn down: Terminate(other) or shutdown's drain
		// readied this goroutine while it sat parked here. Unwind without
		// resuming whatever it was doing; the caller's own deferred
		// sched.mu.Unlock() fires during this Goexit-driven unwind.
		if s.draining != nil {
			s.draining.Done()
		}
		runtime.Goexit()
	}
}

// dispatchAfterSelfRemoval implements the self-terminate branch of §4.6's
// terminate row: the outgoing thread's TCB has already been deleted from
// the registry by the caller, so there is nothing to capture or re-enqueue
// — dispatch only needs to pick the next thread and ready it. The caller
// never parks (it is about to end its own goroutine via runtime.Goexit),
// matching "does not return".
func (s *scheduler) dispatchAfterSelfRemoval() {
	s.totalQuantums++
	s.markQuantumStart()
	s.wakeScan()

	next, ok := s.popReady()
	if !ok {
		// Unlike dispatch, this function's only caller (Terminate's
		// self-terminate branch) never holds a defer sched.mu.Unlock() of
		// its own — it relies entirely on this function to unlock before
		// returning. In production fatalNoRunnableThread's osExit(1) never
		// returns, so that never matters; under a test-stubbed osExit, mu
		// is left locked deliberately, matching the "process is gone"
		// state this branch represents.
		fatalNoRunnableThread()
		return // unreachable outside tests stubbing osExit
	}

	s.currentTID = next.id
	next.state = StateRunning
	next.quantumsRun++
	next.parker.Ready()
	s.mu.Unlock()
}

// shutdownDrain implements the shutdown-time analogue of Terminate(other):
// every remaining registered thread other than the caller (whichever thread
// is actually RUNNING and executing this call — not necessarily main, since
// any thread may call Terminate(0)) is torn down and its parked trampoline
// goroutine released, exactly as Terminate(other) does for a single target.
// The running caller itself is excluded deliberately: it isn't parked, so
// Ready() on it would be a no-op and its WaitGroup entry would never be
// signaled. The caller must hold s.mu and keeps holding it; the returned
// WaitGroup is signaled once every released goroutine has observed its
// terminated flag and is unwinding.
func (s *scheduler) shutdownDrain() *sync.WaitGroup {
	var wg sync.WaitGroup
	targets := s.reg.drainExcept(s.currentTID)
	if len(targets) == 0 {
		return &wg
	}

	s.draining = &wg
	wg.Add(len(targets))
	for _, t := range targets {
		switch t.state {
		case StateReady:
			s.removeFromReady(t.id)
		case StateBlocked:
			s.removeBlocked(t.id)
		}
		s.slots.Release(t.slot)
		t.terminated = true
		t.parker.Ready()
	}
	return &wg
}

// checkpoint is the Go-native preemption driver of §4.5: every public
// operation except Init and Terminate calls it right after acquiring mu. If the virtual quantum has
// elapsed, the calling (RUNNING) thread drives dispatch itself — the only
// goroutine that safely can (see SPEC_FULL.md §1/§4.5).
func (s *scheduler) checkpoint() {
	if s.virtualQuantumElapsed() {
		s.dispatch()
	}
}

// checkpoint/dispatch always return with mu held, whether or not a switch
// actually took place, so callers never need to special-case the outcome.
