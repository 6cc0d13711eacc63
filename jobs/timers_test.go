package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleAsyncFiresOnceAfterDelay(t *testing.T) {
	m := newTestManager(t, 2)
	go m.RunMainThread()

	var fired atomic.Int32
	done := make(chan struct{})
	m.ScheduleAsync(10*time.Millisecond, Dispatch, func() {
		fired.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestScheduleAsyncJobQueuesGivenExecutor(t *testing.T) {
	m := newTestManager(t, 2)
	go m.RunMainThread()

	done := make(chan *JobRunnerThread, 1)
	m.ScheduleAsyncJob(10*time.Millisecond, Dispatch, ExecutorFunc(func(thread *JobRunnerThread) Result {
		done <- thread
		return ResultFinished
	}))

	select {
	case thread := <-done:
		assert.NotNil(t, thread)
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestScheduleRecurringAsyncFiresMultipleTimes(t *testing.T) {
	m := newTestManager(t, 2)
	go m.RunMainThread()

	var count atomic.Int32
	atLeastThree := make(chan struct{})
	var closed atomic.Bool
	handle := m.ScheduleRecurringAsync(15*time.Millisecond, Dispatch, func() {
		if count.Add(1) >= 3 && closed.CompareAndSwap(false, true) {
			close(atLeastThree)
		}
	})

	select {
	case <-atLeastThree:
	case <-time.After(3 * time.Second):
		t.Fatal("recurring timer did not fire three times")
	}

	assert.True(t, m.CancelAsyncJob(handle))
	assert.True(t, handle.IsCancelled())
}

func TestCancelAsyncJobStopsNativeOneShotBeforeItFires(t *testing.T) {
	m := newTestManager(t, 2)
	go m.RunMainThread()

	var fired atomic.Bool
	handle := m.ScheduleAsync(100*time.Millisecond, Dispatch, func() { fired.Store(true) })

	ok := m.CancelAsyncJob(handle)
	assert.True(t, ok)

	time.Sleep(200 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.False(t, m.CancelAsyncJob(handle), "cancelling twice must report false")
}

func TestCancelAsyncJobOnAlreadyFiredReturnsFalse(t *testing.T) {
	m := newTestManager(t, 2)
	go m.RunMainThread()

	done := make(chan struct{})
	handle := m.ScheduleAsync(5*time.Millisecond, Dispatch, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	time.Sleep(20 * time.Millisecond)
	assert.False(t, m.CancelAsyncJob(handle))
}

func TestTimersJobOnExecuteDrainsDueAndRearmsRecurring(t *testing.T) {
	m := newTestManager(t, 1)

	var ran atomic.Int32
	tj := newTimersJob(m, AsyncTimers)
	due := &timerEntry{
		fireAt:   time.Now().Add(-time.Millisecond),
		interval: 20 * time.Millisecond,
		priority: LoadAssetData,
		handle:   newTimerHandle(),
		callback: func() { ran.Add(1) },
	}
	notYetDue := &timerEntry{
		fireAt:   time.Now().Add(time.Hour),
		handle:   newTimerHandle(),
		callback: func() {},
	}
	tj.mu.Lock()
	tj.pending = append(tj.pending, due, notYetDue)
	tj.mu.Unlock()

	result := tj.OnExecute(nil)
	assert.Equal(t, ResultAwaitExternalFinish, result)

	tj.mu.Lock()
	defer tj.mu.Unlock()
	assert.Len(t, tj.pending, 2, "the recurring entry re-arms itself, the not-yet-due entry stays")
	found := false
	for _, e := range tj.pending {
		if e == due {
			found = true
			assert.True(t, e.fireAt.After(time.Now()), "recurring entry's next fire time moved into the future")
		}
	}
	assert.True(t, found, "recurring entry must remain pending after firing")
}

func TestTimersJobCancelledEntrySkippedWithoutRearming(t *testing.T) {
	m := newTestManager(t, 1)
	tj := newTimersJob(m, AsyncTimers)

	handle := newTimerHandle()
	handle.tryTransition(timerCancelled)
	tj.mu.Lock()
	tj.pending = append(tj.pending, &timerEntry{
		fireAt:   time.Now().Add(-time.Millisecond),
		interval: 20 * time.Millisecond,
		handle:   handle,
		callback: func() { t.Fatal("cancelled entry must not run") },
	})
	tj.mu.Unlock()

	tj.OnExecute(nil)

	tj.mu.Lock()
	defer tj.mu.Unlock()
	assert.Empty(t, tj.pending, "a cancelled due entry is dropped, not re-armed")
}
