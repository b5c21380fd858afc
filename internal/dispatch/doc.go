// Package dispatch drains a spool directory by running a bounded pool of
// worker processes, one per spool file.
//
// The dispatcher is a single polling loop. Each pass it:
//   - scans the spool and, if the parallelism ceiling allows, launches one
//     worker for the first file (in name order) that is not already in flight
//   - SIGKILLs workers that have outlived the timeout
//   - reaps every worker that has exited, reading its result record from a
//     private pipe wired to the worker's descriptor 0
//   - folds results into the stats aggregator and flushes it when due
//
// Worker invocation:
//
//	<command> <host> <port> <spool_dir>/<file>
//
// The worker owns the spool file: it deletes it after sending, and reports
// "metrics,bytes,seconds" on fd 0 before exiting. The dispatcher never
// requeues or retries; a file a worker leaves behind is simply offered again
// on a later pass, so delivery is at-least-once.
//
// Concurrency: the active-worker table is owned by the loop goroutine. Each
// worker has a waiter goroutine whose only job is to post the process exit
// on a channel the loop drains without blocking.
package dispatch
