package timer

import (
	"container/heap"
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// Flags control how a timer is scheduled.
type Flags uint8

const (
	// Repeat re-arms the timer after every run.
	Repeat Flags = 1 << iota

	// RunNow schedules the first run immediately.
	RunNow
)

// ID identifies an armed timer. The zero value never refers to a timer.
type ID uint64

// InvalidID is returned alongside errors from Set.
const InvalidID ID = 0

// Callback is the function invoked when a timer fires.
type Callback func()

// Logger defines the logging interface used by the queue.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// entry is one armed timer.
type entry struct {
	id     ID
	due    time.Time
	period time.Duration
	repeat bool
	cb     Callback
	index  int // position in the heap, -1 when not queued
}

// Queue is a cooperative timer queue. Create with New and drive with Run.
//
// Set and Clear are safe for concurrent use, including from callbacks.
type Queue struct {
	mu      sync.Mutex
	entries entryHeap
	byID    map[ID]*entry
	nextID  ID
	stopped bool

	// wake is signalled when the head of the queue may have changed.
	wake chan struct{}

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		byID:   make(map[ID]*entry),
		wake:   make(chan struct{}, 1),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the queue.
func (q *Queue) SetLogger(logger Logger) {
	q.loggerMu.Lock()
	q.logger = logger
	q.loggerMu.Unlock()
}

// Set arms a timer that calls cb after period.
//
// With Repeat the callback runs every period until cleared. With RunNow the
// first run is due immediately. A one-shot timer with a zero period runs on
// the next turn of the queue.
func (q *Queue) Set(period time.Duration, flags Flags, cb Callback) (ID, error) {
	if cb == nil {
		return InvalidID, ErrNilCallback
	}
	if period < 0 || (period == 0 && flags&Repeat != 0) {
		return InvalidID, fmt.Errorf("%w: %v", ErrInvalidPeriod, period)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return InvalidID, ErrStopped
	}

	q.nextID++
	due := time.Now()
	if flags&RunNow == 0 {
		due = due.Add(period)
	}
	e := &entry{
		id:     q.nextID,
		due:    due,
		period: period,
		repeat: flags&Repeat != 0,
		cb:     cb,
	}
	heap.Push(&q.entries, e)
	q.byID[e.id] = e
	q.signal()

	return e.id, nil
}

// Clear disarms a timer. It reports whether the timer was still armed.
// Clearing a timer from inside its own callback stops further repeats.
func (q *Queue) Clear(id ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return false
	}
	delete(q.byID, id)
	if e.index >= 0 {
		heap.Remove(&q.entries, e.index)
	}
	q.signal()
	return true
}

// Len returns the number of armed timers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}

// Run fires due timers until ctx is cancelled. Callbacks run sequentially on
// the calling goroutine. After Run returns, Set fails with ErrStopped.
func (q *Queue) Run(ctx context.Context) error {
	defer func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
	}()

	for {
		e, wait := q.next(time.Now())
		if e != nil {
			q.invoke(e)
			continue
		}

		var timeout <-chan time.Time
		var t *time.Timer
		if wait >= 0 {
			t = time.NewTimer(wait)
			timeout = t.C
		}

		select {
		case <-ctx.Done():
			if t != nil {
				t.Stop()
			}
			return ctx.Err()
		case <-q.wake:
		case <-timeout:
		}
		if t != nil {
			t.Stop()
		}
	}
}

// next pops the head timer if it is due, re-arming repeats. Otherwise it
// returns how long to wait, or -1 when the queue is empty.
func (q *Queue) next(now time.Time) (*entry, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil, -1
	}
	head := q.entries[0]
	if head.due.After(now) {
		return nil, head.due.Sub(now)
	}

	heap.Pop(&q.entries)
	if head.repeat {
		head.due = head.due.Add(head.period)
		if !head.due.After(now) {
			// Fell behind; skip missed runs rather than bursting.
			head.due = now.Add(head.period)
		}
		heap.Push(&q.entries, head)
	} else {
		delete(q.byID, head.id)
	}
	return head, 0
}

// invoke runs a callback, recovering from panics.
func (q *Queue) invoke(e *entry) {
	defer func() {
		if r := recover(); r != nil {
			q.loggerMu.RLock()
			logger := q.logger
			q.loggerMu.RUnlock()
			logger.Error("timer callback panic recovered",
				"timer_id", uint64(e.id),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	e.cb()
}

// signal wakes Run without blocking. Caller must hold q.mu.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// entryHeap orders entries by due time, then by ID for a stable order
// between timers due at the same instant.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].id < h[j].id
	}
	return h[i].due.Before(h[j].due)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry) //nolint:forcetypeassert // heap only holds *entry
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
