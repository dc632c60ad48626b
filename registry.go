package uthreads

// registry is the TCB registry of §4.3: id -> TCB, with smallest-free-id
// assignment. Grounded in the free-node/reuse-by-index bookkeeping pattern
// of the teacher's list.go (a pool of reusable nodes addressed by identity
// rather than by fresh allocation each time) — reframed here from "reusable
// queue node" to "reusable thread id". Access is always made from inside
// the scheduler's critical section, so no lock of its own is needed.
type registry struct {
	threads map[int]*TCB
	maxID   int
}

func newRegistry(maxThreads int) *registry {
	return &registry{
		threads: make(map[int]*TCB, maxThreads),
		maxID:   maxThreads,
	}
}

func (r *registry) insert(t *TCB) {
	r.threads[t.id] = t
}

func (r *registry) lookup(id int) (*TCB, bool) {
	t, ok := r.threads[id]
	return t, ok
}

func (r *registry) remove(id int) {
	delete(r.threads, id)
}

// smallestFreeID returns the smallest non-negative integer not currently
// registered, below maxID, or ok==false if the registry is full.
func (r *registry) smallestFreeID() (id int, ok bool) {
	for candidate := 0; candidate < r.maxID; candidate++ {
		if _, taken := r.threads[candidate]; !taken {
			return candidate, true
		}
	}
	return 0, false
}

func (r *registry) len() int {
	return len(r.threads)
}

// drainExcept removes and returns every registered TCB other than keepID,
// for shutdown's drain of all remaining threads (§ shutdown-on-main-
// terminate). Order is unspecified, matching wakeScan's documented
// unspecified ordering among threads processed together.
func (r *registry) drainExcept(keepID int) []*TCB {
	var drained []*TCB
	for id, t := range r.threads {
		if id == keepID {
			continue
		}
		drained = append(drained, t)
		delete(r.threads, id)
	}
	return drained
}
