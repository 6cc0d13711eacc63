package jobs

import (
	"io"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/nginetech/enginekit/common"
)

// diskLoadState is AsyncDiskLoadJob's two-state machine
// (AsyncLoadFromDiskJob.h): a job either hasn't yet been granted an
// in-flight read slot, or is waiting for a read it already launched to
// complete.
type diskLoadState uint8

const (
	diskLoadWaitingForInitialRequest diskLoadState = iota
	diskLoadWaitingForAsyncRead
)

// diskLoadLimiter caps how many disk reads run concurrently process-wide,
// queuing the rest by priority and promoting the most urgent waiter the
// instant a slot frees up.
type diskLoadLimiter struct {
	max      int
	inFlight common.AtomicNumericValue[int32]

	mu      sync.Mutex
	waiting []*AsyncDiskLoadJob
}

func newDiskLoadLimiter(numCPUs int) *diskLoadLimiter {
	return &diskLoadLimiter{max: common.ComputeMaxInFlightAsyncReads(numCPUs)}
}

var globalDiskLoadLimiter = newDiskLoadLimiter(runtime.NumCPU())

func (l *diskLoadLimiter) tryAcquire() bool {
	return common.AtomicMorph[int32, bool](&l.inFlight, func(cur int32) (int32, bool) {
		if int(cur) >= l.max {
			return cur, false
		}
		return cur + 1, true
	})
}

// enqueueWaiting parks job until a slot frees up, in priority order so the
// most urgent pending load is promoted first.
func (l *diskLoadLimiter) enqueueWaiting(job *AsyncDiskLoadJob) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.waiting
	i := sort.Search(len(w), func(i int) bool { return w[i].Priority > job.Priority })
	w = append(w, nil)
	copy(w[i+1:], w[i:])
	w[i] = job
	l.waiting = w
}

// release gives up job's slot: if a waiter is queued it inherits the slot
// directly (the in-flight count never actually drops), otherwise the
// count is decremented for the next tryAcquire to claim.
func (l *diskLoadLimiter) release() {
	l.mu.Lock()
	if len(l.waiting) > 0 {
		next := l.waiting[0]
		l.waiting = l.waiting[1:]
		l.mu.Unlock()

		next.launchRead()
		next.state = diskLoadWaitingForAsyncRead
		next.TryQueue(next.manager)
		return
	}
	l.mu.Unlock()
	l.inFlight.Add(-1)
}

// AsyncDiskLoadJob reads one file's full contents off the calling
// goroutine, polling for completion via TryRequeue rather than blocking a
// runner thread on the read (AsyncLoadFromDiskJob.cpp). The actual read
// runs on a plain goroutine since the stdlib has no cross-platform async
// file I/O API to launch a true OS-level async read against.
type AsyncDiskLoadJob struct {
	*Job
	manager  *JobManager
	path     string
	callback func(data []byte, err error)

	state diskLoadState
	done  chan struct{}
	data  []byte
	err   error
}

// NewAsyncDiskLoadJob constructs a job that reads path and invokes
// callback with its contents (or the error that occurred) once done.
// Queue it like any other Job; it requeues itself until the read finishes.
func NewAsyncDiskLoadJob(manager *JobManager, path string, priority Priority, callback func(data []byte, err error)) *AsyncDiskLoadJob {
	d := &AsyncDiskLoadJob{manager: manager, path: path, callback: callback}
	d.Job = NewJob(priority, d)
	return d
}

func (d *AsyncDiskLoadJob) launchRead() {
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		d.data, d.err = readFileFully(d.path)
	}()
}

func readFileFully(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, info.Size())
	if _, err := io.ReadFull(f, buf); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// OnExecute implements the two-state machine: the initial request either
// claims an in-flight slot and launches the read or parks on the
// limiter's waiting list; every subsequent execution just polls the
// read's completion channel.
func (d *AsyncDiskLoadJob) OnExecute(*JobRunnerThread) Result {
	switch d.state {
	case diskLoadWaitingForInitialRequest:
		if !globalDiskLoadLimiter.tryAcquire() {
			globalDiskLoadLimiter.enqueueWaiting(d)
			return ResultAwaitExternalFinish
		}
		d.launchRead()
		d.state = diskLoadWaitingForAsyncRead
		return ResultTryRequeue

	case diskLoadWaitingForAsyncRead:
		select {
		case <-d.done:
			d.callback(d.data, d.err)
			globalDiskLoadLimiter.release()
			return ResultFinished
		default:
			return ResultTryRequeue
		}

	default:
		return ResultFinished
	}
}
