package jobs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nginetech/enginekit/common"
)

// RunnerFlags are the JobRunnerThread.Flags bits (JobRunnerThread.h).
// HasAnyJobsInQueues/HasAnyJobsInThreadSafeQueues/HasWork from the original
// are derived rather than stored here, since Go lets the scheduling loop
// just call the cheap methods below instead of keeping a redundant bit in
// sync.
type RunnerFlags uint32

const (
	RunnerNone RunnerFlags = 0

	RunnerIsQuitting       RunnerFlags = 1 << 0
	RunnerIsStartingThread RunnerFlags = 1 << 1
	RunnerIsIdle           RunnerFlags = 1 << 2

	RunnerCanRunHighPriorityPerformanceJobs RunnerFlags = 1 << 3
	RunnerCanRunLowPriorityPerformanceJobs  RunnerFlags = 1 << 4
	RunnerCanRunEfficiencyJobs              RunnerFlags = 1 << 5
)

// PlatformThreadPriority is the §6 "set thread priority to a band plus a
// 0..1 ratio" platform query: an opaque collaborator this package consumes
// but does not implement, since Go has no portable API for adjusting an
// OS thread's scheduling priority. Callers on a platform that does expose
// one (e.g. via runtime.LockOSThread plus a syscall) supply it through
// JobManagerConfig; left nil, runners compute the band purely for logging.
type PlatformThreadPriority interface {
	SetThreadPriority(band ThreadPriorityBand, ratio float64)
}

// JobRunnerThread is one worker: a local sorted queue it owns exclusively,
// a local exclusive-affinity queue, and a pair of thread-safe inbound
// queues other goroutines submit into. Inbound jobs sit in a
// common.LinkedList (an O(1) insert/pop FIFO) that gets drained and
// priority-sorted into the local queues once per loop iteration
// (absorbInbound), so cross-thread submission never needs to take a lock
// proportional to queue size.
type JobRunnerThread struct {
	Index   int
	manager *JobManager
	logger  common.ILoggerResetable

	// threadPriority is the §6 platform collaborator; nil means this
	// runner only logs the band a job wants instead of applying it.
	threadPriority PlatformThreadPriority
	lastBand       ThreadPriorityBand
	lastBandSet    bool

	capabilities RunnerFlags // Can-run-* bits, fixed at construction
	flags        common.AtomicNumericValue[uint32]

	// localMu guards localQueue/localExclusiveQueue/nextJob. The owning
	// runner's own loop takes it on every pass, and a peer runner stealing
	// work (shareJobsWithIdleThreads) takes it too; contention is rare
	// since stealing only happens when the peer is otherwise idle.
	localMu             sync.Mutex
	localQueue          []*Job // sorted ascending by Priority (lower runs first)
	localExclusiveQueue []*Job
	nextJob             *Job

	inboundMu             sync.Mutex
	inboundCond           *sync.Cond
	inboundQueue          common.LinkedList[*Job]
	inboundExclusiveQueue common.LinkedList[*Job]
}

// NewJobRunnerThread constructs a runner. capabilities fixes which job
// classes it may ever execute (performance-high/low, efficiency); that
// never changes after construction, unlike the rest of Flags.
func NewJobRunnerThread(index int, manager *JobManager, capabilities RunnerFlags, logger common.ILoggerResetable) *JobRunnerThread {
	return NewJobRunnerThreadWithPlatform(index, manager, capabilities, logger, nil)
}

// NewJobRunnerThreadWithPlatform is NewJobRunnerThread plus an explicit §6
// thread-priority collaborator; threadPriority may be nil.
func NewJobRunnerThreadWithPlatform(index int, manager *JobManager, capabilities RunnerFlags, logger common.ILoggerResetable, threadPriority PlatformThreadPriority) *JobRunnerThread {
	t := &JobRunnerThread{
		Index:          index,
		manager:        manager,
		logger:         logger,
		capabilities:   capabilities,
		threadPriority: threadPriority,
	}
	t.inboundCond = sync.NewCond(&t.inboundMu)
	t.flags.Store(uint32(capabilities))
	return t
}

func (t *JobRunnerThread) Flags() RunnerFlags { return RunnerFlags(t.flags.Load()) }

func (t *JobRunnerThread) CanRun(p Priority) bool {
	flags := t.Flags()
	switch {
	case p.IsHighPriorityPerformanceJob():
		return common.BitflagsContainAny(flags, RunnerCanRunHighPriorityPerformanceJobs)
	case p.IsLowPriorityPerformanceJob():
		return common.BitflagsContainAny(flags, RunnerCanRunLowPriorityPerformanceJobs)
	default:
		return common.BitflagsContainAny(flags, RunnerCanRunEfficiencyJobs)
	}
}

func (t *JobRunnerThread) HasAnyJobsInQueues() bool {
	t.localMu.Lock()
	defer t.localMu.Unlock()
	return len(t.localQueue) > 0 || len(t.localExclusiveQueue) > 0 || t.nextJob != nil
}

func (t *JobRunnerThread) HasAnyJobsInThreadSafeQueues() bool {
	t.inboundMu.Lock()
	defer t.inboundMu.Unlock()
	return t.inboundQueue.Len() > 0 || t.inboundExclusiveQueue.Len() > 0
}

func (t *JobRunnerThread) HasWork() bool {
	return t.HasAnyJobsInQueues() || t.HasAnyJobsInThreadSafeQueues()
}

// submitThreadSafe is how JobManager hands a job to this runner from
// whichever goroutine picked it as the ideal runner.
func (t *JobRunnerThread) submitThreadSafe(job *Job) {
	t.inboundMu.Lock()
	t.inboundQueue.Insert(job)
	t.inboundCond.Signal()
	t.inboundMu.Unlock()
}

// enqueueExclusive adds job to this runner's own exclusive queue, called
// only from the runner's own loop goroutine (QueueExclusiveFromCurrentThread).
func (t *JobRunnerThread) enqueueExclusive(job *Job) {
	t.localMu.Lock()
	insertSortedByPriority(&t.localExclusiveQueue, job)
	t.localMu.Unlock()
}

// enqueueExclusiveThreadSafe adds job to this runner's exclusive queue from
// any goroutine (QueueExclusiveFromAnyThread).
func (t *JobRunnerThread) enqueueExclusiveThreadSafe(job *Job) {
	t.inboundMu.Lock()
	t.inboundExclusiveQueue.Insert(job)
	t.inboundCond.Signal()
	t.inboundMu.Unlock()
}

func insertSortedByPriority(queue *[]*Job, job *Job) {
	q := *queue
	i := sort.Search(len(q), func(i int) bool { return q[i].Priority > job.Priority })
	q = append(q, nil)
	copy(q[i+1:], q[i:])
	q[i] = job
	*queue = q
}

func popFront(queue *[]*Job) *Job {
	q := *queue
	if len(q) == 0 {
		return nil
	}
	job := q[0]
	*queue = q[1:]
	return job
}

// absorbInbound drains both thread-safe inbound queues into the local
// sorted queues. Called once at the top of every scheduling-loop pass
// (§4.H step 1).
func (t *JobRunnerThread) absorbInbound() {
	t.inboundMu.Lock()
	var inbound, inboundExclusive []*Job
	for t.inboundQueue.Len() > 0 {
		inbound = append(inbound, t.inboundQueue.Back())
		t.inboundQueue.PopRear()
	}
	for t.inboundExclusiveQueue.Len() > 0 {
		inboundExclusive = append(inboundExclusive, t.inboundExclusiveQueue.Back())
		t.inboundExclusiveQueue.PopRear()
	}
	t.inboundMu.Unlock()

	if len(inbound) == 0 && len(inboundExclusive) == 0 {
		return
	}

	t.localMu.Lock()
	for _, job := range inbound {
		insertSortedByPriority(&t.localQueue, job)
	}
	for _, job := range inboundExclusive {
		insertSortedByPriority(&t.localExclusiveQueue, job)
	}
	t.localMu.Unlock()
}

// selectNextJob picks what to run next: the cached next-job slot first,
// then exclusive-affinity work (which can only ever run here), then the
// shared local queue (§4.H step 2).
func (t *JobRunnerThread) selectNextJob() *Job {
	t.localMu.Lock()
	defer t.localMu.Unlock()
	if t.nextJob != nil {
		job := t.nextJob
		t.nextJob = nil
		return job
	}
	if job := popFront(&t.localExclusiveQueue); job != nil {
		return job
	}
	return popFront(&t.localQueue)
}

// requeue puts job back on the appropriate local queue after a
// TryRequeue result, preserving its priority order.
func (t *JobRunnerThread) requeue(job *Job) {
	t.localMu.Lock()
	defer t.localMu.Unlock()
	if job.AllowedRunnerMask != 0 {
		insertSortedByPriority(&t.localExclusiveQueue, job)
		return
	}
	insertSortedByPriority(&t.localQueue, job)
}

// stealOne lets an idle peer runner take the least-urgent job out of this
// runner's shared local queue, provided requester is actually capable of
// running it (capability class, and exclusion via AllowedRunnerMask).
// Exclusive-affinity work is never stolen.
func (t *JobRunnerThread) stealOne(requester *JobRunnerThread) *Job {
	t.localMu.Lock()
	defer t.localMu.Unlock()

	for i := len(t.localQueue) - 1; i >= 0; i-- {
		job := t.localQueue[i]
		if job.AllowedRunnerMask != 0 && job.AllowedRunnerMask&(1<<uint(requester.Index)) == 0 {
			continue
		}
		if !requester.CanRun(job.Priority) {
			continue
		}
		t.localQueue = append(t.localQueue[:i], t.localQueue[i+1:]...)
		return job
	}
	return nil
}

func (t *JobRunnerThread) markIdle() {
	t.flags.Or(uint32(RunnerIsIdle))
	t.manager.markThreadAsIdle(t.Index)
}

func (t *JobRunnerThread) clearIdle() {
	t.flags.And(^uint32(RunnerIsIdle))
	t.manager.clearThreadIdleFlag(t.Index)
}

// waitForWork blocks until either an inbound job arrives or the runner is
// asked to quit.
func (t *JobRunnerThread) waitForWork() {
	t.inboundMu.Lock()
	for t.inboundQueue.Len() == 0 && t.inboundExclusiveQueue.Len() == 0 && !common.BitflagsContainAny(t.Flags(), RunnerIsQuitting) {
		t.inboundCond.Wait()
	}
	t.inboundMu.Unlock()
}

func (t *JobRunnerThread) wake() {
	t.inboundMu.Lock()
	t.inboundCond.Broadcast()
	t.inboundMu.Unlock()
}

// Stop asks the runner's Run loop to exit at its next opportunity.
func (t *JobRunnerThread) Stop() {
	t.flags.Or(uint32(RunnerIsQuitting))
	t.wake()
}

func (t *JobRunnerThread) log(level common.LogLevel, msg string) {
	if t.logger != nil {
		t.logger.Log(level, msg)
	}
}

// Run is the scheduling loop (§4.H): absorb inbound work, pick a job
// (stealing one from a peer runner's queue if this runner has none of its own), attempt
// the Queued->Executing transition, execute, and requeue on TryRequeue.
// Runner 0 runs this in-place on the caller's goroutine (the "main
// thread"); every other runner runs it on its own goroutine started by
// JobManager.StartRunners.
func (t *JobRunnerThread) Run() {
	for !common.BitflagsContainAny(t.Flags(), RunnerIsQuitting) {
		t.absorbInbound()

		job := t.selectNextJob()
		if job == nil {
			t.markIdle()
			job = t.manager.shareJobsWithIdleThreads(t)
			if job == nil {
				t.waitForWork()
				t.clearIdle()
				continue
			}
			t.clearIdle()
		}

		if !job.TryBeginExecuting() {
			// Lost the race to another runner, or the job is being torn
			// down; drop it and loop again.
			continue
		}

		band, ratio := job.Priority.ThreadPriorityBand()
		traceID := uuid.New()
		t.log(common.LogDebug, fmt.Sprintf("[%s] executing job at band %s", traceID, bandName(band)))
		t.applyThreadPriorityIfChanged(band, ratio)

		result := job.Execute(t)
		if result == ResultTryRequeue {
			t.requeue(job)
		}
	}
}

// applyThreadPriorityIfChanged is §4.H step 7: "between steps, if the
// thread priority band differs from the current job's required band,
// adjust OS thread priority." With no platform collaborator wired in, this
// is a no-op beyond the band having already been logged by the caller.
func (t *JobRunnerThread) applyThreadPriorityIfChanged(band ThreadPriorityBand, ratio float64) {
	if t.threadPriority == nil {
		return
	}
	if t.lastBandSet && t.lastBand == band {
		return
	}
	t.threadPriority.SetThreadPriority(band, ratio)
	t.lastBand = band
	t.lastBandSet = true
}

func bandName(b ThreadPriorityBand) string {
	switch b {
	case ThreadPriorityHigh:
		return "High"
	case ThreadPriorityNormal:
		return "Normal"
	case ThreadPriorityBelowNormal:
		return "BelowNormal"
	case ThreadPriorityLow:
		return "Low"
	default:
		return "Unknown"
	}
}
