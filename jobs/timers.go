package jobs

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// timerHandleState is a tri-state word so firing and cancelling a timer
// race through a single CAS instead of two independent atomic.Bools:
// exactly one of pending->fired or pending->cancelled wins, so a timer can
// never both run its callback and report itself cancelled (§8 scenario 4's
// "cancelled count + fired count == total").
type timerHandleState uint32

const (
	timerPending timerHandleState = iota
	timerFired
	timerCancelled
)

// TimerHandle identifies a scheduled (possibly recurring) timer so the
// caller can cancel it later.
type TimerHandle struct {
	state atomic.Uint32
	timer *time.Timer // native one-shot path only
}

func newTimerHandle() *TimerHandle { return &TimerHandle{} }

func (h *TimerHandle) IsFinished() bool  { return timerHandleState(h.state.Load()) == timerFired }
func (h *TimerHandle) IsCancelled() bool { return timerHandleState(h.state.Load()) == timerCancelled }

// tryTransition atomically moves the handle from pending to to, returning
// whether this call won the race to do so.
func (h *TimerHandle) tryTransition(to timerHandleState) bool {
	return h.state.CompareAndSwap(uint32(timerPending), uint32(to))
}

// timerEntry is one pending fallback-path timer: a recurring registration
// that TimersJob itself owns and re-arms, as opposed to the primary
// native-timer path (time.AfterFunc directly) used for one-shot timers.
type timerEntry struct {
	fireAt   time.Time
	interval time.Duration
	priority Priority
	callback func()
	handle   *TimerHandle
}

// TimersJob is the fallback timer path: a singleton background Job, owned
// by JobManager, that holds every recurring timer registration sorted by
// next-fire-time. It is woken by a native time.AfterFunc set for the
// earliest entry rather than polling continuously, drains whatever
// entries are due, re-arms recurring ones, and goes back to sleep
// (TimersJob.cpp/RecurringAsyncJob.h). Its own scheduling priority is
// fixed at construction, never recomputed from its contents (Open
// Question (b)): the timers it manages can individually run at any
// priority, but the bookkeeping job itself does not need to compete for
// urgency the way the work it dispatches does.
type TimersJob struct {
	*Job
	manager *JobManager

	mu        sync.Mutex
	pending   []*timerEntry
	wakeTimer *time.Timer
}

func newTimersJob(manager *JobManager, priority Priority) *TimersJob {
	t := &TimersJob{manager: manager}
	t.Job = NewJob(priority, t)
	return t
}

// OnExecute drains every entry whose fire time has passed, dispatching
// each as its own Job at the entry's own priority (so a registered
// callback's urgency is independent of TimersJob's own), re-arms recurring
// entries for their next tick, and schedules a native wake-up for
// whichever remaining entry fires soonest.
func (t *TimersJob) OnExecute(*JobRunnerThread) Result {
	t.mu.Lock()
	now := time.Now()
	due := t.pending[:0:0]
	remaining := t.pending[:0:0]
	for _, e := range t.pending {
		if !e.fireAt.After(now) {
			due = append(due, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	t.pending = remaining
	t.mu.Unlock()

	for _, e := range due {
		if e.interval <= 0 {
			// One-shot fallback entry: claim it atomically so a concurrent
			// cancel() can't win after we've already decided to dispatch.
			if !e.handle.tryTransition(timerFired) {
				continue
			}
			dispatch(t.manager, e)
			continue
		}

		// Recurring: firing never moves the handle away from pending (it
		// can fire many times), so a cancel() shows up as a plain read of
		// the cancelled state.
		if e.handle.IsCancelled() {
			continue
		}
		dispatch(t.manager, e)

		e.fireAt = time.Now().Add(e.interval)
		t.mu.Lock()
		insertEntrySorted(&t.pending, e)
		t.mu.Unlock()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.armWakeLocked()
	return ResultAwaitExternalFinish
}

// dispatch queues entry's callback as its own Job at entry's own priority.
func dispatch(manager *JobManager, entry *timerEntry) {
	callback := entry.callback
	NewJob(entry.priority, ExecutorFunc(func(*JobRunnerThread) Result {
		callback()
		return ResultFinished
	})).Queue(manager)
}

// armWakeLocked schedules (or reschedules) the native timer that will
// re-enter TimersJob into the job queue once the earliest pending entry is
// due. Callers must hold t.mu.
func (t *TimersJob) armWakeLocked() {
	if t.wakeTimer != nil {
		t.wakeTimer.Stop()
		t.wakeTimer = nil
	}
	if len(t.pending) == 0 {
		return
	}
	delay := time.Until(t.pending[0].fireAt)
	if delay < 0 {
		delay = 0
	}
	t.wakeTimer = time.AfterFunc(delay, func() {
		t.Job.TryQueue(t.manager)
	})
}

func insertEntrySorted(pending *[]*timerEntry, entry *timerEntry) {
	p := *pending
	i := sort.Search(len(p), func(i int) bool { return p[i].fireAt.After(entry.fireAt) })
	p = append(p, nil)
	copy(p[i+1:], p[i:])
	p[i] = entry
	*pending = p
}

// scheduleRecurring registers callback to run at priority p every
// interval, via the fallback polling path.
func (t *TimersJob) scheduleRecurring(interval time.Duration, p Priority, callback func(), manager *JobManager) *TimerHandle {
	handle := newTimerHandle()
	entry := &timerEntry{
		fireAt:   time.Now().Add(interval),
		interval: interval,
		priority: p,
		callback: callback,
		handle:   handle,
	}

	t.mu.Lock()
	insertEntrySorted(&t.pending, entry)
	t.armWakeLocked()
	t.mu.Unlock()

	return handle
}

// scheduleNative is the primary timer path: a plain time.AfterFunc, with
// no involvement from TimersJob's polling loop at all. fn is expected to
// submit whatever work it needs onto the job queue itself (ScheduleAsync
// and ScheduleAsyncJob both wrap a Job.Queue call in fn so the dispatched
// work still runs at its own priority instead of on the timer goroutine).
func (t *TimersJob) scheduleNative(delay time.Duration, fn func()) *TimerHandle {
	handle := newTimerHandle()
	handle.timer = time.AfterFunc(delay, func() {
		if !handle.tryTransition(timerFired) {
			// Lost the race to cancel(): it already claimed "cancelled".
			return
		}
		fn()
	})
	return handle
}

// cancel claims handle for cancellation, racing the same CAS the fire path
// uses so exactly one of them wins. Returns false if the timer already
// fired (native path) or was already cancelled.
func (t *TimersJob) cancel(handle *TimerHandle) bool {
	if handle == nil {
		return false
	}
	if !handle.tryTransition(timerCancelled) {
		return false
	}
	if handle.timer != nil {
		handle.timer.Stop()
	}
	return true
}
