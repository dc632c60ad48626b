// Package uthreads is a user-space cooperative/preemptive thread library
// that multiplexes many logical threads onto a single OS thread, scheduled
// round-robin by a virtual-time quantum. See SPEC_FULL.md for the full
// design and DESIGN.md for where each piece is grounded.
package uthreads

import (
	"runtime"
	"sync"
)

// Compile-time configuration constants (§6). MaxThreads bounds concurrent
// thread ids to [0, MaxThreads); StackSize is retained for API fidelity
// with the original stack-pool design (§4.2) even though Go goroutine
// stacks grow on their own and are never sized by this library directly.
const (
	MaxThreads = 100
	StackSize  = 4096
)

var (
	initMu      sync.Mutex
	initialized bool
	sched       *scheduler
)

// Entry is the signature every spawned logical thread's body must have:
// parameterless, no return value, executing on a library-owned goroutine.
// By convention it should eventually call Terminate on its own id;
// falling off the end auto-terminates the thread (§6), matching the
// original contract that an entry point "must eventually invoke terminate
// on itself".
type Entry func()

// Init initializes the thread library. quantumUsecs must be positive. The
// main thread (id 0) becomes RUNNING with quantumsRun == 1 and
// total_quantums == 1 immediately on return. Init may be called at most
// once; calling it again is an error. Returns 0 on success, -1 on failure.
func Init(quantumUsecs int) int {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		libraryError("uthreads already initialized")
		return -1
	}
	if quantumUsecs <= 0 {
		libraryError("quantum_usecs must be positive")
		return -1
	}

	// A single logical thread executes at a time by design (§5); pinning
	// the whole process to one P makes that true of the underlying
	// goroutines too, not just of this library's bookkeeping.
	runtime.GOMAXPROCS(1)
	runtime.LockOSThread()

	s := newScheduler(MaxThreads, quantumUsecs)
	main := newMainTCB()
	main.parker = NewThreadParker()
	s.reg.insert(main)
	s.currentTID = 0
	s.totalQuantums = 1
	s.markQuantumStart()

	sched = s
	initialized = true
	trace.Debug("init", "quantum_usecs", quantumUsecs)
	return 0
}

// requireInit is the entry condition every other public operation shares:
// the library must already be initialized. Per spec.md this is assumed
// ("this function is called before any other thread library function"),
// so unlike the input-validation errors this is not itself part of the
// tested contract — it exists only to fail safely instead of nil-deref if
// misused.
func requireInit() bool {
	return initialized && sched != nil
}

// Spawn creates a new thread running entry, appended to the ready queue.
// Returns the new thread's id, or -1 (with a diagnostic) if entry is nil or
// the library is at capacity.
func Spawn(entry Entry) int {
	if !requireInit() {
		libraryError("library not initialized")
		return -1
	}
	if entry == nil {
		libraryError("entry point is nil")
		return -1
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.checkpoint()

	id, ok := sched.reg.smallestFreeID()
	if !ok {
		libraryError("too many threads")
		return -1
	}
	slot, err := sched.slots.Acquire()
	if err != nil {
		libraryError("%v", err)
		return -1
	}

	t := newWorkerTCB(id, slot)
	sched.reg.insert(t)

	// Launch the trampoline and wait for it to actually reach its first
	// Park before this thread becomes schedulable — see seedPark's comment.
	// This handshake runs under sched.mu, but that's safe even with
	// GOMAXPROCS(1): receiving on an unbuffered channel blocks only this
	// goroutine, so the runtime switches to the new trampoline goroutine to
	// make progress, exactly as it would for any other blocking receive.
	seeded := make(chan struct{})
	go trampoline(t, entry, seeded)
	<-seeded

	sched.enqueueReady(t)

	trace.Debug("spawn", "tid", id, "slot", slot)
	return id
}

// trampoline is the goroutine body every spawned thread runs on: it seeds
// its parker and waits (the "seed" of §4.1 — the first Ready() on t.parker
// is what begins entry()), runs the user's entry function once readied,
// then auto-terminates if entry returns without calling Terminate itself.
func trampoline(t *TCB, entry Entry, seeded chan<- struct{}) {
	t.parker.seedPark(seeded)

	if t.terminated {
		// Terminated by Terminate(other) or shutdown's drain before ever
		// getting to run: woken straight out of its very first park with
		// nothing to unwind but this goroutine itself.
		sched.mu.Lock()
		if sched.draining != nil {
			sched.draining.Done()
		}
		sched.mu.Unlock()
		runtime.Goexit()
	}

	entry()
	Terminate(t.id)
}

// Terminate terminates the thread with the given id, releasing every
// resource the library allocated for it. Terminating the main thread
// (id 0) tears down the library and exits the process with status 0.
// Terminating the calling thread does not return. Returns 0 on success,
// -1 if no such thread exists.
func Terminate(id int) int {
	if !requireInit() {
		libraryError("library not initialized")
		return -1
	}

	sched.mu.Lock()

	t, ok := sched.reg.lookup(id)
	if !ok {
		sched.mu.Unlock()
		libraryError("thread %d does not exist", id)
		return -1
	}

	if id == 0 {
		trace.Debug("terminate main, shutting down")
		sched.mu.Unlock()
		shutdown()
		return 0
	}

	if id != sched.currentTID {
		switch t.state {
		case StateReady:
			sched.removeFromReady(id)
		case StateBlocked:
			sched.removeBlocked(id)
		}
		sched.reg.remove(id)
		sched.slots.Release(t.slot)
		// The target's trampoline goroutine is parked — either inside
		// dispatch (it has already run at least one quantum) or inside
		// seedPark (it never has). Either way it observes t.terminated the
		// instant t.parker.Ready() wakes it and unwinds via runtime.Goexit
		// instead of resuming, so this call releases the goroutine rather
		// than leaving it parked forever.
		t.terminated = true
		t.parker.Ready()
		sched.mu.Unlock()
		trace.Debug("terminate other", "tid", id)
		return 0
	}

	// Self-termination: remove before switching away, per §3's lifecycle
	// note and §9's ownership-by-index design, so the outgoing goroutine
	// never touches its own freed state after control leaves it.
	sched.reg.remove(id)
	sched.slots.Release(t.slot)
	trace.Debug("terminate self", "tid", id)
	sched.dispatchAfterSelfRemoval() // unlocks sched.mu before returning
	runtime.Goexit()
	return 0 // unreachable
}

// Block blocks the thread with the given id. id must not be 0 (blocking
// the main thread is an error) and must exist. Blocking an already-blocked
// thread is a no-op but still marks it explicitly blocked. Blocking the
// calling thread triggers a scheduling decision and does not return until
// the thread is later resumed. Returns 0 on success, -1 on failure.
func Block(id int) int {
	if !requireInit() {
		libraryError("library not initialized")
		return -1
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.checkpoint()

	if id == 0 {
		libraryError("cannot block the main thread")
		return -1
	}
	t, ok := sched.reg.lookup(id)
	if !ok {
		libraryError("thread %d does not exist", id)
		return -1
	}

	t.explicitlyBlocked = true

	if t.state == StateBlocked {
		return 0
	}

	if t.state == StateReady {
		sched.removeFromReady(id)
	}
	t.state = StateBlocked
	sched.addBlocked(id)

	if id == sched.currentTID {
		sched.dispatch()
	}
	trace.Debug("block", "tid", id)
	return 0
}

// Resume moves a blocked thread back to READY. Resuming a thread already
// READY or RUNNING has no effect. Returns 0 on success, -1 if no such
// thread exists.
func Resume(id int) int {
	if !requireInit() {
		libraryError("library not initialized")
		return -1
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.checkpoint()

	t, ok := sched.reg.lookup(id)
	if !ok {
		libraryError("thread %d does not exist", id)
		return -1
	}

	t.explicitlyBlocked = false

	if t.state == StateReady || t.state == StateRunning {
		return 0
	}

	if t.wakeAt == noWake {
		sched.removeBlocked(id)
		sched.enqueueReady(t)
	}
	// If still sleeping (wakeAt != noWake), it stays BLOCKED; the next
	// wake-scan that finds wakeAt elapsed will now promote it to READY
	// since explicitlyBlocked is cleared (§4.6's resume/sleep interaction).
	trace.Debug("resume", "tid", id)
	return 0
}

// Sleep blocks the calling thread for numQuantums further quantum starts.
// numQuantums must be positive and the caller must not be the main thread. Returns 0
// once the thread has woken and been rescheduled, or -1 on invalid input.
func Sleep(numQuantums int) int {
	if !requireInit() {
		libraryError("library not initialized")
		return -1
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.checkpoint()

	if numQuantums <= 0 {
		libraryError("num_quantums must be positive")
		return -1
	}
	if sched.currentTID == 0 {
		libraryError("main thread cannot sleep")
		return -1
	}

	t, _ := sched.reg.lookup(sched.currentTID)
	t.state = StateBlocked
	t.wakeAt = sched.totalQuantums + numQuantums + 1
	sched.addBlocked(t.id)

	trace.Debug("sleep", "tid", t.id, "num_quantums", numQuantums, "wake_at", t.wakeAt)
	sched.dispatch()
	return 0
}

// GetTid returns the id of the calling thread.
func GetTid() int {
	if !requireInit() {
		return -1
	}
	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.checkpoint()
	return sched.currentTID
}

// GetTotalQuantums returns the total number of quantums started since
// Init, including the current one.
func GetTotalQuantums() int {
	if !requireInit() {
		return -1
	}
	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.checkpoint()
	return sched.totalQuantums
}

// GetQuantums returns the number of quantums the thread with the given id
// has been RUNNING (including the current one, if it is RUNNING now), or
// -1 if no such thread exists.
func GetQuantums(id int) int {
	if !requireInit() {
		return -1
	}
	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.checkpoint()

	t, ok := sched.reg.lookup(id)
	if !ok {
		libraryError("thread %d does not exist", id)
		return -1
	}
	return t.quantumsRun
}

// shutdown tears down the library and exits the process with status 0,
// the §4.6 contract for terminating the main thread. Unlike the original's
// atexit-registered cleanup, Go has no destructors to rely on, so teardown
// is explicit here: every remaining thread is drained exactly as
// Terminate(other) drains a single target — its slot released and its
// parked trampoline goroutine readied and torn down via runtime.Goexit — and
// shutdown waits for all of them to finish unwinding before the process
// exits, so no goroutine is ever left parked across process lifetimes in a
// test binary that calls Init again.
func shutdown() {
	sched.mu.Lock()
	wg := sched.shutdownDrain()
	sched.mu.Unlock()
	wg.Wait()

	trace.Debug("shutdown")
	runtime.UnlockOSThread()
	osExit(0)
}
