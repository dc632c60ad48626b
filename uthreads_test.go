package uthreads

import (
	"runtime"
	"sync"
	"testing"
)

// resetForTest restores package-level singleton state once the test
// finishes, so each test starts from a clean, un-initialized library the
// way a fresh process would. Production code never resets this state —
// Init is meant to run once per process — but the test binary runs many
// "processes" worth of scenarios back to back.
func resetForTest(t *testing.T) {
	t.Cleanup(func() {
		initMu.Lock()
		wasInit := initialized
		initialized = false
		sched = nil
		initMu.Unlock()
		if wasInit {
			runtime.UnlockOSThread()
		}
	})
}

func init() {
	// osExit is indirected exactly so the fatal paths (scheduler starvation,
	// shutdown-on-main-terminate) can be exercised without killing the test
	// binary.
	osExit = func(int) {}
}

func TestInitRejectsDoubleInitAndBadQuantum(t *testing.T) {
	resetForTest(t)
	// Bad quantums first, while the library is still uninitialized, so they
	// are rejected for the quantum and not as a second Init.
	if rc := Init(0); rc != -1 {
		t.Fatalf("Init(0): want -1, got %d", rc)
	}
	if rc := Init(-5); rc != -1 {
		t.Fatalf("Init(-5): want -1, got %d", rc)
	}

	if rc := Init(1000); rc != 0 {
		t.Fatalf("first Init: want 0, got %d", rc)
	}
	if rc := Init(1000); rc != -1 {
		t.Fatalf("second Init: want -1, got %d", rc)
	}
}

func TestUninitializedCallsFail(t *testing.T) {
	resetForTest(t)
	if rc := Spawn(func() {}); rc != -1 {
		t.Fatalf("Spawn before Init: want -1, got %d", rc)
	}
	if rc := GetTid(); rc != -1 {
		t.Fatalf("GetTid before Init: want -1, got %d", rc)
	}
	if rc := Terminate(0); rc != -1 {
		t.Fatalf("Terminate before Init: want -1, got %d", rc)
	}
}

func TestMainThreadStateAfterInit(t *testing.T) {
	resetForTest(t)
	if rc := Init(1000); rc != 0 {
		t.Fatalf("Init: want 0, got %d", rc)
	}
	if tid := GetTid(); tid != 0 {
		t.Fatalf("GetTid: want 0, got %d", tid)
	}
	if q := GetQuantums(0); q != 1 {
		t.Fatalf("GetQuantums(0): want 1, got %d", q)
	}
	if q := GetTotalQuantums(); q != 1 {
		t.Fatalf("GetTotalQuantums: want 1, got %d", q)
	}
}

// TestRoundRobinDispatchOrder mirrors spec.md scenario A: two freshly spawned
// threads are serviced in FIFO/round-robin order and each accumulates
// exactly one quantum of running time before voluntarily terminating.
func TestRoundRobinDispatchOrder(t *testing.T) {
	resetForTest(t)
	if rc := Init(200); rc != 0 {
		t.Fatalf("Init: want 0, got %d", rc)
	}

	var mu sync.Mutex
	var order []int

	recorder := func() {
		tid := GetTid()
		mu.Lock()
		order = append(order, tid)
		mu.Unlock()
		Terminate(tid)
	}

	id1 := Spawn(recorder)
	id2 := Spawn(recorder)
	if id1 != 1 || id2 != 2 {
		t.Fatalf("expected ids 1, 2; got %d, %d", id1, id2)
	}

	readLen := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(order)
	}
	for readLen() < 2 {
		GetTotalQuantums() // checkpoint-driven preemption needs repeated API calls to progress
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != id1 || order[1] != id2 {
		t.Fatalf("expected dispatch order [%d %d], got %v", id1, id2, order)
	}
}

// TestSleepWakesAfterRequestedQuantums mirrors spec.md scenario D.
func TestSleepWakesAfterRequestedQuantums(t *testing.T) {
	resetForTest(t)
	if rc := Init(200); rc != 0 {
		t.Fatalf("Init: want 0, got %d", rc)
	}

	var mu sync.Mutex
	var sleptAt, wokeAt int
	awake := false

	sleeper := func() {
		mu.Lock()
		sleptAt = GetTotalQuantums()
		mu.Unlock()
		Sleep(2)
		mu.Lock()
		wokeAt = GetTotalQuantums()
		awake = true
		mu.Unlock()
		Terminate(GetTid())
	}
	id := Spawn(sleeper)
	if id < 0 {
		t.Fatalf("Spawn failed: %d", id)
	}

	isAwake := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return awake
	}
	for !isAwake() {
		GetTotalQuantums()
	}

	mu.Lock()
	defer mu.Unlock()
	// Sleep(2) costs the call's own dispatch plus two further quantum starts.
	if wokeAt < sleptAt+3 {
		t.Fatalf("expected wokeAt (%d) >= sleptAt+3 (%d)", wokeAt, sleptAt+3)
	}
}

// TestBlockResume mirrors spec.md scenario C: an externally blocked thread
// stops accumulating quantums until resumed.
func TestBlockResume(t *testing.T) {
	resetForTest(t)
	if rc := Init(200); rc != 0 {
		t.Fatalf("Init: want 0, got %d", rc)
	}

	stop := make(chan struct{})
	worker := func() {
		tid := GetTid()
		for {
			select {
			case <-stop:
				Terminate(tid)
				return
			default:
				GetQuantums(tid) // checkpoint; lets the caller's block/resume take effect
			}
		}
	}
	id := Spawn(worker)
	if id < 0 {
		t.Fatalf("Spawn failed: %d", id)
	}

	// Let it accumulate at least one quantum before blocking it.
	for GetQuantums(id) < 1 {
		GetTotalQuantums()
	}

	if rc := Block(id); rc != 0 {
		t.Fatalf("Block: want 0, got %d", rc)
	}
	stalled := GetQuantums(id)
	for i := 0; i < 5; i++ {
		GetTotalQuantums()
	}
	if got := GetQuantums(id); got != stalled {
		t.Fatalf("expected quantum count frozen at %d while blocked, got %d", stalled, got)
	}

	if rc := Resume(id); rc != 0 {
		t.Fatalf("Resume: want 0, got %d", rc)
	}
	for GetQuantums(id) == stalled {
		GetTotalQuantums()
	}

	close(stop)
	for {
		sched.mu.Lock()
		_, exists := sched.reg.lookup(id)
		sched.mu.Unlock()
		if !exists {
			break
		}
		GetTotalQuantums()
	}
}

func TestBlockRejectsMainThread(t *testing.T) {
	resetForTest(t)
	Init(1000)
	if rc := Block(0); rc != -1 {
		t.Fatalf("Block(0): want -1, got %d", rc)
	}
}

func TestBlockUnknownThread(t *testing.T) {
	resetForTest(t)
	Init(1000)
	if rc := Block(42); rc != -1 {
		t.Fatalf("Block(42): want -1, got %d", rc)
	}
}

func TestResumeOnRunningIsNoOp(t *testing.T) {
	resetForTest(t)
	Init(1000)
	if rc := Resume(0); rc != 0 {
		t.Fatalf("Resume(0) on the running main thread: want 0, got %d", rc)
	}
	if tid := GetTid(); tid != 0 {
		t.Fatalf("expected main thread still running after no-op resume, got tid %d", tid)
	}
}

func TestSpawnRejectsNilEntry(t *testing.T) {
	resetForTest(t)
	Init(1000)
	if rc := Spawn(nil); rc != -1 {
		t.Fatalf("Spawn(nil): want -1, got %d", rc)
	}
}

func TestSpawnCapacityError(t *testing.T) {
	resetForTest(t)
	// A deliberately huge quantum: these spawned threads are never meant to
	// run, so if a checkpoint ever did dispatch to one mid-loop it must not
	// wedge the test — self-terminating immediately keeps that harmless too.
	Init(1 << 30)

	harmless := func() { Terminate(GetTid()) }
	count := 0
	for {
		id := Spawn(harmless)
		if id < 0 {
			break
		}
		count++
	}
	if count != MaxThreads-1 {
		t.Fatalf("expected exactly %d successful spawns before capacity error, got %d", MaxThreads-1, count)
	}
}

func TestTerminateUnknownThread(t *testing.T) {
	resetForTest(t)
	Init(1000)
	if rc := Terminate(123); rc != -1 {
		t.Fatalf("Terminate(123): want -1, got %d", rc)
	}
}

func TestTerminateMainShutsDown(t *testing.T) {
	resetForTest(t)
	Init(1000)
	if rc := Terminate(0); rc != 0 {
		t.Fatalf("Terminate(0): want 0, got %d", rc)
	}
}

// waitForGoroutineCount polls runtime.NumGoroutine() until it matches want
// or the attempt budget runs out, giving the runtime a chance to actually
// finish unwinding a goroutine torn down via runtime.Goexit.
func waitForGoroutineCount(t *testing.T, want int) {
	t.Helper()
	for i := 0; i < 100000; i++ {
		if runtime.NumGoroutine() == want {
			return
		}
		runtime.Gosched()
	}
	t.Fatalf("expected %d goroutines, got %d", want, runtime.NumGoroutine())
}

// TestTerminateOtherReleasesGoroutineAndReusesID mirrors spec.md scenario C
// (terminate-other): terminating a thread that is not the caller must
// release the live goroutine parked on its behalf, not just its
// bookkeeping, and the freed id must become available again.
func TestTerminateOtherReleasesGoroutineAndReusesID(t *testing.T) {
	resetForTest(t)
	// A small quantum, as in TestRoundRobinDispatchOrder/TestBlockResume: id1
	// only ever gets to run at all via checkpoint-driven dispatch from the
	// polling loop below, which needs the quantum to actually elapse.
	if rc := Init(200); rc != 0 {
		t.Fatalf("Init: want 0, got %d", rc)
	}
	base := runtime.NumGoroutine()

	// id1 runs at least one quantum, then blocks itself forever: its
	// goroutine is parked inside scheduler.dispatch (the "already run"
	// half of the terminated-check invariant).
	id1 := Spawn(func() {
		Block(GetTid())
	})
	if id1 < 0 {
		t.Fatalf("Spawn id1 failed: %d", id1)
	}
	for GetQuantums(id1) < 1 {
		GetTotalQuantums()
	}
	waitForGoroutineCount(t, base+1)

	if rc := Terminate(id1); rc != 0 {
		t.Fatalf("Terminate(id1): want 0, got %d", rc)
	}
	waitForGoroutineCount(t, base)
	if q := GetQuantums(id1); q != -1 {
		t.Fatalf("GetQuantums(id1) after terminate-other: want -1, got %d", q)
	}

	// id2 is terminated immediately after spawn, before it has ever run:
	// its goroutine is parked inside trampoline's seedPark (the "never
	// run" half of the invariant).
	id2 := Spawn(func() { Terminate(GetTid()) })
	if id2 < 0 {
		t.Fatalf("Spawn id2 failed: %d", id2)
	}
	waitForGoroutineCount(t, base+1)

	if rc := Terminate(id2); rc != 0 {
		t.Fatalf("Terminate(id2): want 0, got %d", rc)
	}
	waitForGoroutineCount(t, base)
	if q := GetQuantums(id2); q != -1 {
		t.Fatalf("GetQuantums(id2) after terminate-other: want -1, got %d", q)
	}

	id3 := Spawn(func() { Terminate(GetTid()) })
	if id3 != id1 {
		t.Fatalf("expected freed id %d to be reused, got %d", id1, id3)
	}
}
