package jobs

import (
	"context"
	"math"
	"math/bits"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nginetech/enginekit/common"
)

// MaximumRunnerCount bounds the runner array the same way JobManager.h's
// fixed-size array does; there is no dynamic growth past this.
const MaximumRunnerCount = 64

// JobManagerConfig sizes a JobManager. Go's runtime doesn't expose
// performance/efficiency core topology (no equivalent of the original's
// heterogeneous-CPU detection), so the split is caller-supplied; a
// PerformanceCoreCount of zero still yields one performance-class runner
// (runner 0). Core counts are never detected from the host.
type JobManagerConfig struct {
	PerformanceCoreCount int
	EfficiencyCoreCount  int
	LogFileFolder        string
	MinimumLogLevel      common.LogLevel

	// EnableCPUContentionMonitor starts a self-calibrating background
	// monitor (common.NewCalibratedCpuUsageMonitor) that work-stealing
	// consults before taking a job from a peer's queue: stealing under
	// system-wide CPU contention just reshuffles work that isn't going to
	// get scheduled time anyway. Off by default since calibration spins up
	// a goroutine that runs for the process's lifetime.
	EnableCPUContentionMonitor bool

	// ThreadPriority is the §6 platform collaborator that applies a
	// runner's computed ThreadPriorityBand to the underlying OS thread.
	// Go has no portable equivalent, so this is opaque and optional; left
	// nil, runners compute and log the band but never apply it.
	ThreadPriority PlatformThreadPriority
}

// JobManager owns the fixed runner array, the idle-runner bitmask, and the
// Timers subsystem singleton (JobManager.h).
type JobManager struct {
	runners []*JobRunnerThread

	// Capability masks are set once at construction and only ever read
	// afterward, so a common.Bitmap (plain, non-atomic) is a fine backing
	// store for them; idleMask below is mutated on every steal and stays a
	// single atomic word instead.
	perfHighMask   common.Bitmap
	perfLowMask    common.Bitmap
	efficiencyMask common.Bitmap

	idleMask          common.AtomicNumericValue[uint64]
	externalTaskCount common.AtomicNumericValue[int64]
	roundRobin        common.AtomicNumericValue[uint64]

	timers *TimersJob

	cpuMonitor common.CPUMonitor

	runnerGroup *errgroup.Group
}

// NewJobManager builds the runner array: runner 0 is always high-capable
// (it also doubles as the caller's own thread via RunMainThread), the
// remaining performance cores are split 90/10 into high/low-priority
// capable runners with low folding entirely into high when the 10% share
// rounds to zero, and the efficiency cores get their own class.
func NewJobManager(cfg JobManagerConfig) *JobManager {
	perf := cfg.PerformanceCoreCount
	if perf <= 0 {
		perf = 1
	}
	if perf+cfg.EfficiencyCoreCount > MaximumRunnerCount {
		cfg.EfficiencyCoreCount = MaximumRunnerCount - perf
		if cfg.EfficiencyCoreCount < 0 {
			perf, cfg.EfficiencyCoreCount = MaximumRunnerCount, 0
		}
	}

	highCount, lowCount := splitPerformanceCores(perf)

	m := &JobManager{
		perfHighMask:   common.NewBitMap(MaximumRunnerCount),
		perfLowMask:    common.NewBitMap(MaximumRunnerCount),
		efficiencyMask: common.NewBitMap(MaximumRunnerCount),
		cpuMonitor:     common.NewNullCpuMonitor(),
	}
	if cfg.EnableCPUContentionMonitor {
		m.cpuMonitor = common.NewCalibratedCpuUsageMonitor()
	}
	logger := func(index int) common.ILoggerResetable {
		if cfg.LogFileFolder == "" {
			return nil
		}
		l := common.NewRunnerLogger(uint8(index), cfg.MinimumLogLevel, cfg.LogFileFolder)
		l.OpenLog()
		return l
	}

	index := 0
	for i := 0; i < highCount; i++ {
		caps := RunnerCanRunHighPriorityPerformanceJobs | RunnerCanRunLowPriorityPerformanceJobs
		m.runners = append(m.runners, NewJobRunnerThreadWithPlatform(index, m, caps, logger(index), cfg.ThreadPriority))
		m.perfHighMask.Set(index)
		index++
	}
	for i := 0; i < lowCount; i++ {
		caps := RunnerCanRunLowPriorityPerformanceJobs
		m.runners = append(m.runners, NewJobRunnerThreadWithPlatform(index, m, caps, logger(index), cfg.ThreadPriority))
		m.perfLowMask.Set(index)
		index++
	}
	for i := 0; i < cfg.EfficiencyCoreCount; i++ {
		caps := RunnerCanRunEfficiencyJobs
		m.runners = append(m.runners, NewJobRunnerThreadWithPlatform(index, m, caps, logger(index), cfg.ThreadPriority))
		m.efficiencyMask.Set(index)
		index++
	}

	m.timers = newTimersJob(m, AsyncTimers)
	return m
}

// splitPerformanceCores divides p performance-class runners 90/10 into
// high/low, folding the low share into high when rounding sends it to
// zero (JobManager.h's fold-into-adjacent-if-empty rule).
func splitPerformanceCores(p int) (high, low int) {
	if p <= 0 {
		return 0, 0
	}
	high = int(math.Round(float64(p) * 0.9))
	if high < 1 {
		high = 1
	}
	if high > p {
		high = p
	}
	return high, p - high
}

func (m *JobManager) RunnerCount() int { return len(m.runners) }

func (m *JobManager) capableRunnerMask(p Priority) uint64 {
	switch {
	case p.IsHighPriorityPerformanceJob():
		return bitmapWord(m.perfHighMask)
	case p.IsLowPriorityPerformanceJob():
		return bitmapWord(m.perfHighMask) | bitmapWord(m.perfLowMask)
	default:
		return bitmapWord(m.efficiencyMask)
	}
}

// bitmapWord collapses a common.Bitmap sized for MaximumRunnerCount back
// into the single uint64 word the rest of the manager's mask arithmetic
// (round-robin, idle-steal CAS) operates on; MaximumRunnerCount being 64
// guarantees the bitmap never needs more than one word.
func bitmapWord(b common.Bitmap) uint64 {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// enqueue is QueueOnIdealRunner: prefer handing the job straight to an
// already-idle capable runner (it will pick the job up without anyone else
// needing to notice); otherwise round-robin across capable runners so load
// spreads out even when nobody happens to be idle.
func (m *JobManager) enqueue(job *Job) {
	mask := m.capableRunnerMask(job.Priority)
	if job.AllowedRunnerMask != 0 {
		if restricted := mask & job.AllowedRunnerMask; restricted != 0 {
			mask = restricted
		}
		// else: AllowedRunnerMask names no capable runner; fall back to
		// the full capable set rather than silently dropping the job.
	}

	if idx, ok := m.stealFirstIdleThread(mask); ok {
		m.runners[idx].submitThreadSafe(job)
		return
	}
	m.runners[m.roundRobinCandidate(mask)].submitThreadSafe(job)
}

func (m *JobManager) roundRobinCandidate(mask uint64) int {
	candidates := maskIndices(mask)
	if len(candidates) == 0 {
		return 0
	}
	n := m.roundRobin.Add(1)
	return candidates[int(n)%len(candidates)]
}

func maskIndices(mask uint64) []int {
	var out []int
	for mask != 0 {
		idx := bits.TrailingZeros64(mask)
		out = append(out, idx)
		mask &^= 1 << uint(idx)
	}
	return out
}

func (m *JobManager) markThreadAsIdle(index int)    { m.idleMask.Or(1 << uint(index)) }
func (m *JobManager) clearThreadIdleFlag(index int) { m.idleMask.And(^(uint64(1) << uint(index))) }

type idleSteal struct {
	index int
	found bool
}

// stealFirstIdleThread atomically claims one idle runner whose index is
// set in mask, mirroring JobManager.h's StealIdleThreads CAS-retry loop
// (now backed by common.AtomicMorph).
func (m *JobManager) stealFirstIdleThread(mask uint64) (int, bool) {
	result := common.AtomicMorph[uint64, idleSteal](&m.idleMask, func(cur uint64) (uint64, idleSteal) {
		avail := cur & mask
		if avail == 0 {
			return cur, idleSteal{-1, false}
		}
		idx := bits.TrailingZeros64(avail)
		return cur &^ (1 << uint(idx)), idleSteal{idx, true}
	})
	return result.index, result.found
}

// shareJobsWithIdleThreads is called by a runner that just found its own
// queues empty: it asks every other runner to give up their least-urgent
// job, stopping at the first one willing to (§4.H step 4). It skips
// stealing entirely when the CPU monitor reports contention: redistributing
// work while the box is already saturated by something outside the job
// system just burns cycles without getting the stolen job scheduled any
// sooner.
func (m *JobManager) shareJobsWithIdleThreads(requester *JobRunnerThread) *Job {
	if m.cpuMonitor.CPUContentionExists() {
		return nil
	}
	for _, candidate := range m.runners {
		if candidate == requester {
			continue
		}
		if job := candidate.stealOne(requester); job != nil {
			return job
		}
	}
	return nil
}

// StartRunners launches every runner but index 0 on its own goroutine.
// Runner 0 is expected to run in-place via RunMainThread, the same way the
// original reserves the thread that constructs the JobManager.
func (m *JobManager) StartRunners(ctx context.Context) *errgroup.Group {
	eg, _ := errgroup.WithContext(ctx)
	for _, runner := range m.runners[1:] {
		runner := runner
		eg.Go(func() error {
			runner.flags.Or(uint32(RunnerIsStartingThread))
			runner.flags.And(^uint32(RunnerIsStartingThread))
			runner.Run()
			return nil
		})
	}
	m.runnerGroup = eg
	return eg
}

// RunMainThread runs runner 0's scheduling loop on the calling goroutine,
// blocking until the manager is stopped.
func (m *JobManager) RunMainThread() {
	if len(m.runners) == 0 {
		return
	}
	m.runners[0].Run()
}

// Stop asks every runner to exit its scheduling loop.
func (m *JobManager) Stop() {
	for _, r := range m.runners {
		r.Stop()
	}
}

// Wait blocks until every goroutine started by StartRunners has returned.
func (m *JobManager) Wait() error {
	if m.runnerGroup == nil {
		return nil
	}
	return m.runnerGroup.Wait()
}

// BeginExternalTask/EndExternalTask track work the job system is waiting
// on that isn't itself a Job (e.g. a caller blocking on a future) so
// shutdown can wait for it to drain.
func (m *JobManager) BeginExternalTask() { m.externalTaskCount.Add(1) }
func (m *JobManager) EndExternalTask()   { m.externalTaskCount.Add(-1) }
func (m *JobManager) ExternalTaskCount() int64 { return m.externalTaskCount.Load() }

// ScheduleAsync runs callback once after delay, dispatched through the job
// queue at priority p so it runs on a runner rather than the timer's own
// goroutine, via the Timers subsystem's native-timer path.
func (m *JobManager) ScheduleAsync(delay time.Duration, p Priority, callback func()) *TimerHandle {
	return m.timers.scheduleNative(delay, func() {
		NewJob(p, ExecutorFunc(func(*JobRunnerThread) Result {
			callback()
			return ResultFinished
		})).Queue(m)
	})
}

// ScheduleRecurringAsync runs callback every interval at priority p until
// cancelled, via the Timers subsystem's fallback polling path.
func (m *JobManager) ScheduleRecurringAsync(interval time.Duration, p Priority, callback func()) *TimerHandle {
	return m.timers.scheduleRecurring(interval, p, callback, m)
}

// ScheduleAsyncJob queues an arbitrary Executor to run once after delay.
func (m *JobManager) ScheduleAsyncJob(delay time.Duration, p Priority, executor Executor) *TimerHandle {
	return m.timers.scheduleNative(delay, func() { NewJob(p, executor).Queue(m) })
}

// CancelAsyncJob cancels a pending or recurring timer; it's a no-op if the
// timer already fired (one-shot) or was already cancelled.
func (m *JobManager) CancelAsyncJob(handle *TimerHandle) bool {
	return m.timers.cancel(handle)
}
