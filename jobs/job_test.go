package jobs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingExecutor struct {
	mu      sync.Mutex
	results []Result
	next    []Result
}

func (e *recordingExecutor) OnExecute(*JobRunnerThread) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := ResultFinished
	if len(e.next) > 0 {
		r = e.next[0]
		e.next = e.next[1:]
	}
	e.results = append(e.results, r)
	return r
}

func TestJobStartsInNoneState(t *testing.T) {
	j := NewJob(EndSession, &recordingExecutor{})
	assert.False(t, j.IsQueued())
	assert.False(t, j.IsExecuting())
	assert.False(t, j.IsDestroying())
}

func TestJobTryBeginExecutingWinsExactlyOnce(t *testing.T) {
	j := NewJob(EndSession, &recordingExecutor{})
	j.MarkQueued()

	var wg sync.WaitGroup
	wins := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- j.TryBeginExecuting()
		}()
	}
	wg.Wait()
	close(wins)

	winCount := 0
	for w := range wins {
		if w {
			winCount++
		}
	}
	assert.Equal(t, 1, winCount, "exactly one caller should win the Queued->Executing race")
}

func TestJobTryBeginExecutingFailsWhileDestroying(t *testing.T) {
	j := NewJob(EndSession, &recordingExecutor{})
	j.MarkQueued()
	j.MarkDestroying()

	assert.False(t, j.TryBeginExecuting())
}

func TestJobExecuteClearsStateOnFinish(t *testing.T) {
	exec := &recordingExecutor{}
	j := NewJob(EndSession, exec)
	j.MarkQueued()
	assert.True(t, j.TryBeginExecuting())

	result := j.Execute(nil)
	assert.Equal(t, ResultFinished, result)
	assert.False(t, j.IsQueued())
	assert.False(t, j.IsExecuting())
}

func TestJobExecuteKeepsQueuedOnRequeue(t *testing.T) {
	exec := &recordingExecutor{next: []Result{ResultTryRequeue}}
	j := NewJob(EndSession, exec)
	j.MarkQueued()
	assert.True(t, j.TryBeginExecuting())

	result := j.Execute(nil)
	assert.Equal(t, ResultTryRequeue, result)
	assert.True(t, j.IsQueued())
	assert.False(t, j.IsExecuting())
}

func TestJobTryQueueRejectsAlreadyQueuedJob(t *testing.T) {
	manager := NewJobManager(JobManagerConfig{PerformanceCoreCount: 1})
	j := NewJob(EndSession, &recordingExecutor{})

	assert.True(t, j.TryQueue(manager))
	assert.False(t, j.TryQueue(manager), "a job already queued must not be queued twice")
}

func TestJobSignalsDependentsOnFinish(t *testing.T) {
	dependent := NewJob(EndSession, &recordingExecutor{})
	j := NewJob(EndSession, &recordingExecutor{})
	j.AddSubsequentStage(&dependent.Stage)

	j.MarkQueued()
	assert.True(t, j.TryBeginExecuting())
	j.Execute(nil)

	assert.False(t, dependent.HasOutstandingDependencies())
}

func TestJobQueueWhenDependenciesResolvedFiresAutomatically(t *testing.T) {
	manager := NewJobManager(JobManagerConfig{PerformanceCoreCount: 1})
	parent := NewJob(EndSession, &recordingExecutor{})
	child := NewJob(EndSession, &recordingExecutor{})

	parent.AddSubsequentStage(&child.Stage)
	child.QueueWhenDependenciesResolved(manager)
	assert.False(t, child.IsQueued(), "child must wait for its parent")

	parent.MarkQueued()
	assert.True(t, parent.TryBeginExecuting())
	parent.Execute(nil)

	assert.True(t, child.IsQueued())
}
