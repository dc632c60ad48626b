package uthreads

// State is one of the three states a TCB can occupy (§3).
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateBlocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

// noSlot marks a TCB that does not own a slot in the goroutine pool — only
// the main thread (id 0), which runs on the host goroutine rather than a
// pooled trampoline.
const noSlot = -1

// noWake is the "not sleeping" sentinel for wakeAt; quantum numbers start
// at 1 so 0 can never collide with a real wake target.
const noWake = 0

// TCB is a Thread Control Block: one per logical thread, as in §3.
type TCB struct {
	id                int
	quantumsRun       int
	state             State
	parker            *ThreadParker
	slot              int
	wakeAt            int
	explicitlyBlocked bool

	// terminated marks a thread torn down while it was READY or BLOCKED
	// (by Terminate(other) or shutdown's drain), i.e. while its goroutine
	// was parked rather than running. There is no way to reach into a
	// parked goroutine and unwind it directly, so the goroutine itself
	// checks this flag the instant it is woken — in scheduler.dispatch
	// for a thread that had already run at least one quantum, or in
	// trampoline for one that was still waiting on its very first
	// dispatch — and calls runtime.Goexit instead of resuming normally.
	terminated bool
}

func newMainTCB() *TCB {
	return &TCB{
		id:          0,
		quantumsRun: 1,
		state:       StateRunning,
		slot:        noSlot,
	}
}

func newWorkerTCB(id, slot int) *TCB {
	return &TCB{
		id:     id,
		state:  StateReady,
		parker: NewThreadParker(),
		slot:   slot,
	}
}
