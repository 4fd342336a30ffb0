// Package timer provides a cooperative timer queue.
//
// All callbacks registered with a Queue run one at a time on the goroutine
// that called Run, so callbacks never race each other. A callback may arm or
// clear timers on the same queue, including itself.
//
// Two flags control scheduling:
//
//   - Repeat re-arms the timer with the same period after each run.
//   - RunNow makes the first run happen immediately instead of after one period.
//
// A callback that panics is logged and the queue keeps running.
package timer
