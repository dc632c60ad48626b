package uthreads

import "golang.org/x/sys/unix"

// virtualMicros reports the process's virtual (user+system CPU) time in
// microseconds, the Go-reachable analogue of ITIMER_VIRTUAL: it advances
// only while this process is actually executing, never while idle or
// blocked on I/O, which is exactly the property §4.5 requires of the
// preemption driver ("virtual time ... so that idle time does not advance
// quanta").
func virtualMicros() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		// Getrusage failing is a genuine environment error (§7): the
		// original's equivalent failures are sigaction/setitimer install
		// errors, both fatal at init. Sampling it on every checkpoint
		// means a failure here is just as unrecoverable.
		systemError("getrusage: %v", err)
	}
	return ru.Utime.Usec + ru.Utime.Sec*1e6 + ru.Stime.Usec + ru.Stime.Sec*1e6
}

// markQuantumStart records the virtual-time baseline for the quantum that
// just began, so the next checkpoint can tell whether a full quantum's
// worth of virtual CPU time has since elapsed.
func (s *scheduler) markQuantumStart() {
	s.quantumMark = virtualMicros()
}

// virtualQuantumElapsed reports whether quantumUsecs of virtual CPU time
// have passed since the current quantum began.
func (s *scheduler) virtualQuantumElapsed() bool {
	return virtualMicros()-s.quantumMark >= int64(s.quantumUsecs)
}
