package uthreads

import (
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// trace is an optional, non-contract structured logger for dispatch/wake/
// spawn events — purely a debugging aid, enabled via EnableTrace or the
// UTHREADS_TRACE environment variable. It never touches the exact-format
// diagnostic stream below: that stream is a tested contract (spec.md §7)
// and a structured logger's timestamps/level tags would corrupt the
// required "thread library error:"/"system error:" prefixes.
var trace = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: true,
	Prefix:          "uthreads",
})

// osExit is indirected so tests can swap in a non-terminating stand-in
// when exercising the fatal-error paths.
var osExit = os.Exit

func init() {
	trace.SetLevel(charmlog.FatalLevel) // silent unless EnableTrace raises it
	if os.Getenv("UTHREADS_TRACE") != "" {
		EnableTrace()
	}
}

// EnableTrace turns on verbose scheduler tracing (dispatch, wake, spawn,
// terminate events) to stderr. It is entirely additive and never affects
// the library-error/system-error diagnostic contract.
func EnableTrace() {
	trace.SetLevel(charmlog.DebugLevel)
}

// libraryError reports a structural error per §7's "Input error"/
// "Capacity error" rows: printed verbatim with the required prefix, never
// an exception, always paired with a -1 return by the caller.
func libraryError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "thread library error: %s\n", fmt.Sprintf(format, args...))
}

// systemError reports an environment-class failure per §7: printed with
// the required prefix, and the process exits non-zero. These are by
// definition unrecoverable.
func systemError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "system error: %s\n", fmt.Sprintf(format, args...))
	osExit(1)
}

// fatalNoRunnableThread implements §4.4 step 5 / §7's scheduler-starvation
// row: the ready queue is empty at dispatch time with no thread left to
// run. This can only happen if every thread has blocked or terminated
// itself with nothing else runnable — the caller's own responsibility per
// spec.md §5's "at least one runnable thread" invariant. Matching
// original_source/uthreads.cpp, the diagnostic keeps the "thread library
// error:" prefix even though, per spec.md §7, the process still exits
// non-zero — the prefix describes the cause (a logic error: nothing left
// to schedule), the exit status describes the consequence (unrecoverable).
func fatalNoRunnableThread() {
	fmt.Fprintln(os.Stderr, "thread library error: no threads to schedule")
	osExit(1)
}
