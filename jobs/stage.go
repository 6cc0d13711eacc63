package jobs

import (
	"sync"

	"github.com/nginetech/enginekit/common"
)

// RemovalFlags controls RemoveSubsequentStage's behavior (StageBase.h).
type RemovalFlags uint8

const (
	// WasCompleted tells RemoveSubsequentStage the caller already knows the
	// dependency finished, so the completed-dependency count must be
	// decremented along with the dependency count (they'd otherwise drift).
	WasCompleted RemovalFlags = 1 << iota
	// ExecuteIfDependenciesResolved runs OnDependenciesResolvedInternal
	// inline if removing this dependency just resolved the remainder.
	ExecuteIfDependenciesResolved
)

// Stage is one node of the dependency graph: something that other stages
// can depend on finishing before they themselves may run. Job embeds Stage
// to get the dependency-graph machinery; it's a separate type because
// intermediate graph nodes (fan-in/fan-out points with no job body of their
// own) are also stages without being jobs.
type Stage struct {
	// nc guards against a Stage (or a Job embedding one) being copied by
	// value after first use: a copy would carry its own mu while still
	// aliasing whatever nextStages pointed to, silently splitting the
	// dependency graph.
	nc common.NoCopy

	dependencyCount          common.AtomicNumericValue[uint16]
	completedDependencyCount common.AtomicNumericValue[uint16]

	mu         sync.RWMutex
	nextStages []dependent

	onDependenciesResolved func()
}

type dependent struct {
	stage *Stage
}

// AddSubsequentStage registers next as depending on s: next will not be
// considered for resolution until s reports completion via
// OnDependencyExecuted or SignalExecutionFinished.
func (s *Stage) AddSubsequentStage(next *Stage) {
	s.nc.Check()
	s.mu.Lock()
	s.nextStages = append(s.nextStages, dependent{stage: next})
	s.mu.Unlock()
	next.dependencyCount.Add(1)
}

// RemoveSubsequentStage undoes a prior AddSubsequentStage. If flags includes
// WasCompleted the dependent's completed-count is decremented too, keeping
// dependencyCount and completedDependencyCount from drifting apart. If flags
// includes ExecuteIfDependenciesResolved and removing this edge leaves next
// with zero outstanding dependencies, next's resolution callback runs
// inline on the calling goroutine.
func (s *Stage) RemoveSubsequentStage(next *Stage, flags RemovalFlags) {
	s.mu.Lock()
	for i, d := range s.nextStages {
		if d.stage == next {
			s.nextStages = append(s.nextStages[:i], s.nextStages[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	remaining := next.dependencyCount.Add(^uint16(0))
	completed := next.completedDependencyCount.Load()
	if flags&WasCompleted != 0 {
		completed = next.completedDependencyCount.Add(^uint16(0))
	}
	if flags&ExecuteIfDependenciesResolved != 0 && remaining == completed {
		next.onDependenciesResolvedInternal()
	}
}

// OnDependencyExecuted is called by a dependency stage when it finishes.
// Once every dependency has reported in, s's resolution callback runs.
func (s *Stage) OnDependencyExecuted() {
	completed := s.completedDependencyCount.Add(1)
	if completed >= s.dependencyCount.Load() {
		s.onDependenciesResolvedInternal()
	}
}

// onDependenciesResolvedInternal resets the completed count so the stage
// can be reused (e.g. a recurring job re-entering the graph) and invokes
// the stage's resolution hook, if any.
func (s *Stage) onDependenciesResolvedInternal() {
	s.completedDependencyCount.Store(0)
	if s.onDependenciesResolved != nil {
		s.onDependenciesResolved()
	}
}

// SignalExecutionFinished notifies every subsequent stage that s has
// completed, without tearing down s's own edge list.
func (s *Stage) SignalExecutionFinished() {
	s.nc.Check()
	s.mu.RLock()
	next := append([]dependent(nil), s.nextStages...)
	s.mu.RUnlock()

	for _, d := range next {
		d.stage.OnDependencyExecuted()
	}
}

// SignalExecutionFinishedAndDestroying notifies every subsequent stage and
// then clears s's own edge list, for a stage that is about to be freed.
func (s *Stage) SignalExecutionFinishedAndDestroying() {
	s.mu.Lock()
	next := s.nextStages
	s.nextStages = nil
	s.mu.Unlock()

	for _, d := range next {
		d.stage.OnDependencyExecuted()
	}
}

// HasOutstandingDependencies reports whether s is still waiting on any
// dependency to report completion.
func (s *Stage) HasOutstandingDependencies() bool {
	return s.completedDependencyCount.Load() < s.dependencyCount.Load()
}
