package jobs

import (
	"reflect"

	"github.com/nginetech/enginekit/common"
)

// JobStateFlags tracks a Job's position in its lifecycle. Rendered with the
// engine's homegrown EnumHelper fork (zero-arg methods as symbols), the same
// idiom StageBase-adjacent code used before reflection; see
// reflection.PropertyFlags for the upstream enum.EnumHelper sibling.
type JobStateFlags uint32

var EJobStateFlags = JobStateFlags(0).None()

func (JobStateFlags) None() JobStateFlags       { return JobStateFlags(0) }
func (JobStateFlags) Queued() JobStateFlags      { return JobStateFlags(1 << 0) }
func (JobStateFlags) IsExecuting() JobStateFlags { return JobStateFlags(1 << 1) }
func (JobStateFlags) Destroying() JobStateFlags  { return JobStateFlags(1 << 2) }

func (f JobStateFlags) String() string {
	return common.EnumHelper{}.StringIntegerFlags(uint64(f), reflect.TypeOf(f), 10, func(v interface{}) uint64 {
		return uint64(v.(JobStateFlags))
	})
}

var (
	jobStateNone       = JobStateFlags(0).None()
	jobStateQueued     = JobStateFlags(0).Queued()
	jobStateExecuting  = JobStateFlags(0).IsExecuting()
	jobStateDestroying = JobStateFlags(0).Destroying()
)

// Result is what an Executor's OnExecute returns to tell the runner what to
// do with the job next (§4.G).
type Result uint8

const (
	ResultFinished Result = iota
	ResultTryRequeue
	ResultAwaitExternalFinish
	ResultFinishedAndDelete
	ResultFinishedAndRunDestructor
)

func (r Result) String() string {
	switch r {
	case ResultFinished:
		return "Finished"
	case ResultTryRequeue:
		return "TryRequeue"
	case ResultAwaitExternalFinish:
		return "AwaitExternalFinish"
	case ResultFinishedAndDelete:
		return "FinishedAndDelete"
	case ResultFinishedAndRunDestructor:
		return "FinishedAndRunDestructor"
	default:
		return "Unknown"
	}
}

// Executor is the job body. OnExecute runs on whatever JobRunnerThread
// dequeued the job; it returns a Result telling the runner whether the job
// is done, needs to run again (TryRequeue, for jobs polling external
// completion like async disk reads or timers), or is waiting on something
// that will re-queue it itself (AwaitExternalFinish).
type Executor interface {
	OnExecute(thread *JobRunnerThread) Result
}

// ExecutorFunc adapts a plain function to Executor, for jobs that don't
// need their own named type.
type ExecutorFunc func(thread *JobRunnerThread) Result

func (f ExecutorFunc) OnExecute(thread *JobRunnerThread) Result { return f(thread) }

// Job is a schedulable unit of work and a dependency-graph node (via the
// embedded Stage). State transitions are CAS-driven so a job can be safely
// raced over by the runner that owns it, a thread stealing it, and a thread
// destroying it concurrently (Job.h).
type Job struct {
	Stage

	Priority Priority

	// AllowedRunnerMask restricts execution to a subset of runners; 0 means
	// any runner may execute this job.
	AllowedRunnerMask uint64

	state    common.AtomicNumericValue[uint32]
	executor Executor
}

// NewJob constructs a Job with the given priority and body, in the None
// state (not yet queued).
func NewJob(priority Priority, executor Executor) *Job {
	j := &Job{Priority: priority, executor: executor}
	j.state.Store(uint32(jobStateNone))
	return j
}

func (j *Job) stateFlags() JobStateFlags { return JobStateFlags(j.state.Load()) }

func (j *Job) IsQueued() bool     { return common.BitflagsContainAny(j.stateFlags(), jobStateQueued) }
func (j *Job) IsExecuting() bool  { return common.BitflagsContainAny(j.stateFlags(), jobStateExecuting) }
func (j *Job) IsDestroying() bool { return common.BitflagsContainAny(j.stateFlags(), jobStateDestroying) }

func (j *Job) IsHighPriorityPerformanceJob() bool { return j.Priority.IsHighPriorityPerformanceJob() }
func (j *Job) IsLowPriorityPerformanceJob() bool  { return j.Priority.IsLowPriorityPerformanceJob() }
func (j *Job) IsEfficiencyJob() bool              { return j.Priority.IsEfficiencyJob() }

// MarkDestroying flags the job as being torn down; no further execution
// attempts should begin once this is set.
func (j *Job) MarkDestroying() { j.state.Or(uint32(jobStateDestroying)) }

// MarkQueued flags the job as present in some runner's queue.
func (j *Job) MarkQueued() { j.state.Or(uint32(jobStateQueued)) }

// clearQueuedAndExecuting drops both the queued and executing bits, for a
// job that has finished (Result other than TryRequeue).
func (j *Job) clearQueuedAndExecuting() {
	j.state.And(^uint32(jobStateQueued | jobStateExecuting))
}

// clearExecuting drops just the executing bit, for a job returning
// TryRequeue: it goes back into a runner's queue still marked Queued.
func (j *Job) clearExecuting() {
	j.state.And(^uint32(jobStateExecuting))
}

// TryBeginExecuting attempts the Queued -> Queued|IsExecuting transition a
// runner makes right before calling OnExecute. It fails (returning false)
// if another runner already won the race to execute this job, or if the
// job is being destroyed; the caller should skip the job rather than run
// it twice.
func (j *Job) TryBeginExecuting() bool {
	for {
		cur := j.stateFlags()
		if common.BitflagsContainAny(cur, jobStateDestroying|jobStateExecuting) {
			return false
		}
		next := common.BitflagsAdd(cur, jobStateExecuting)
		if j.state.CompareAndSwap(uint32(cur), uint32(next)) {
			return true
		}
	}
}

// Execute runs the job body and applies the resulting state transition,
// returning the Result so the caller can act on it (requeue, signal
// dependents, etc).
func (j *Job) Execute(thread *JobRunnerThread) Result {
	result := j.executor.OnExecute(thread)
	switch result {
	case ResultTryRequeue:
		// Stays Queued: the runner puts it straight back on a local queue.
		j.clearExecuting()
	case ResultAwaitExternalFinish:
		// Unlike TryRequeue, nothing has the job in a runner queue anymore:
		// whatever external event re-enters it is expected to call TryQueue,
		// which requires the Queued bit to already be clear.
		j.clearQueuedAndExecuting()
	default:
		j.clearQueuedAndExecuting()
		j.SignalExecutionFinished()
	}
	return result
}

// QueueWhenDependenciesResolved registers j so that it automatically
// queues itself the moment every stage it depends on (added via
// AddSubsequentStage on those stages) has reported completion, instead of
// requiring the caller to notice and call Queue manually. If j has no
// outstanding dependencies at call time, it queues immediately.
func (j *Job) QueueWhenDependenciesResolved(manager *JobManager) {
	j.onDependenciesResolved = func() { j.Queue(manager) }
	if !j.HasOutstandingDependencies() {
		j.Queue(manager)
	}
}

// Queue submits j to manager for execution on the best available runner,
// honoring AllowedRunnerMask (0 meaning any runner).
func (j *Job) Queue(manager *JobManager) {
	j.MarkQueued()
	manager.enqueue(j)
}

// TryQueue submits j only if it isn't already queued or executing,
// returning false if the job was already in flight.
func (j *Job) TryQueue(manager *JobManager) bool {
	for {
		cur := j.stateFlags()
		if common.BitflagsContainAny(cur, jobStateQueued|jobStateExecuting) {
			return false
		}
		next := common.BitflagsAdd(cur, jobStateQueued)
		if j.state.CompareAndSwap(uint32(cur), uint32(next)) {
			manager.enqueue(j)
			return true
		}
	}
}

// QueueExclusiveFromCurrentThread submits j to the calling runner's own
// exclusive queue: only that runner will ever execute it. Used for work
// that must continue on the thread that produced its input.
func (j *Job) QueueExclusiveFromCurrentThread(thread *JobRunnerThread) {
	j.MarkQueued()
	thread.enqueueExclusive(j)
}

// QueueExclusiveFromAnyThread submits j to thread's exclusive queue from a
// goroutine that is not necessarily thread's own runner loop.
func (j *Job) QueueExclusiveFromAnyThread(thread *JobRunnerThread) {
	j.MarkQueued()
	thread.enqueueExclusiveThreadSafe(j)
}
