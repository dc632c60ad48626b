package main

import (
	"fmt"

	"github.com/nullfetch/uthreads"
)

// scenario is one selectable demo run. Each carries out its own uthreads.Init
// and drives the library to completion by terminating the main thread.
type scenario func(quantumUsec, quantums int)

var scenarios = map[string]scenario{
	"round-robin":  runRoundRobin,
	"sleep":        runSleep,
	"block-resume": runBlockResume,
	"terminate":    runTerminate,
}

// runRoundRobin carries forward original_source/main.cpp's three busy-count
// threads: main spawns two workers mid-run and all three print a line each
// time their own quantum counter advances, demonstrating round-robin
// dispatch and per-thread quantum accounting (spec.md §8 scenario A).
func runRoundRobin(quantumUsec, quantums int) {
	uthreads.Init(quantumUsec)
	tid := uthreads.GetTid()
	fmt.Printf("thread:m number:(0) tid:%d\n", tid)
	fmt.Printf("init total quantums: %d\n", uthreads.GetTotalQuantums())

	worker := func(name string) uthreads.Entry {
		return func() {
			tid := uthreads.GetTid()
			i := 1
			for {
				if i == uthreads.GetQuantums(tid) {
					fmt.Printf("%s%d quanta:%d\n", name, tid, i)
					if i == quantums {
						fmt.Printf("%s end\n", name)
						uthreads.Terminate(tid)
					}
					i++
				}
			}
		}
	}

	i := 1
	for {
		if i == uthreads.GetQuantums(tid) {
			fmt.Printf("m%d quanta:%d\n", tid, i)
			if i == 3 {
				fmt.Printf("m spawns f at %d\n", uthreads.Spawn(worker("f")))
				fmt.Printf("m spawns g at %d\n", uthreads.Spawn(worker("g")))
			}
			if i == quantums*2 {
				fmt.Printf("total quantums: %d\n", uthreads.GetTotalQuantums())
				uthreads.Terminate(tid)
			}
			i++
		}
	}
}

// runSleep demonstrates a spawned thread sleeping for a fixed number of
// quantums and resuming on schedule (spec.md §8 scenario D).
func runSleep(quantumUsec, quantums int) {
	uthreads.Init(quantumUsec)

	done := make(chan struct{})
	sleeper := func() {
		tid := uthreads.GetTid()
		fmt.Printf("sleeper %d: sleeping for %d quantums\n", tid, quantums)
		uthreads.Sleep(quantums)
		fmt.Printf("sleeper %d: woke at total quantum %d\n", tid, uthreads.GetTotalQuantums())
		close(done)
		uthreads.Terminate(tid)
	}
	uthreads.Spawn(sleeper)

	main := uthreads.GetTid()
	for {
		select {
		case <-done:
			uthreads.Terminate(main)
		default:
			uthreads.GetQuantums(main) // checkpoint, let the sleeper's wake scan run
		}
	}
}

// runBlockResume demonstrates a worker being blocked externally and later
// resumed by the main thread (spec.md §8 scenario C).
func runBlockResume(quantumUsec, quantums int) {
	uthreads.Init(quantumUsec)

	worker := func() {
		tid := uthreads.GetTid()
		for i := 0; i < quantums; i++ {
			fmt.Printf("worker %d: iteration %d\n", tid, i)
			for start := uthreads.GetTotalQuantums(); uthreads.GetTotalQuantums() == start; {
			}
		}
		uthreads.Terminate(tid)
	}
	id := uthreads.Spawn(worker)

	main := uthreads.GetTid()
	for start := uthreads.GetTotalQuantums(); uthreads.GetTotalQuantums() == start; {
	}
	fmt.Printf("main: blocking %d\n", id)
	uthreads.Block(id)
	for start := uthreads.GetTotalQuantums(); uthreads.GetTotalQuantums()-start < 3; {
	}
	fmt.Printf("main: resuming %d\n", id)
	uthreads.Resume(id)
	for uthreads.GetQuantums(id) < quantums {
	}
	uthreads.Terminate(main)
}

// runTerminate demonstrates a worker terminating itself mid-run while the
// main thread keeps going, then the main thread shutting the library down
// (spec.md §8 scenario B).
func runTerminate(quantumUsec, quantums int) {
	uthreads.Init(quantumUsec)

	worker := func() {
		tid := uthreads.GetTid()
		for i := 1; i <= quantums; i++ {
			for start := uthreads.GetTotalQuantums(); uthreads.GetTotalQuantums() == start; {
			}
			fmt.Printf("worker %d: quantum %d\n", tid, i)
		}
		fmt.Printf("worker %d: terminating self\n", tid)
		uthreads.Terminate(tid)
	}
	uthreads.Spawn(worker)

	main := uthreads.GetTid()
	for start := uthreads.GetTotalQuantums(); uthreads.GetTotalQuantums()-start < quantums*2; {
	}
	fmt.Println("main: shutting down")
	uthreads.Terminate(main)
}
