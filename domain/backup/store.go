package backup

import (
	"sort"
	"sync"
	"time"
)

// Store keeps the most recent backup runs in memory.
type Store struct {
	runs  map[string]*Run
	limit int
	mu    sync.RWMutex
}

// NewStore creates a run store that remembers up to limit runs.
func NewStore(limit int) *Store {
	if limit < 1 {
		limit = 50
	}
	return &Store{
		runs:  make(map[string]*Run),
		limit: limit,
	}
}

// Begin records a new running run. It fails with ErrRunning when another run
// has not finished, so at most one backup executes at a time.
func (s *Store) Begin(id string, trigger Trigger, at time.Time) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.runs {
		if r.Status == RunRunning {
			return nil, ErrRunning
		}
	}

	run := &Run{ID: id, Trigger: trigger, Status: RunRunning, StartedAt: at}
	s.runs[id] = run
	s.evict()

	runCopy := *run
	return &runCopy, nil
}

// Succeed marks a run finished with its upload details.
func (s *Store) Succeed(id string, at time.Time, update func(r *Run)) error {
	return s.finish(id, at, RunSucceeded, "", update)
}

// Fail marks a run failed.
func (s *Store) Fail(id string, at time.Time, errMsg string) error {
	return s.finish(id, at, RunFailed, errMsg, nil)
}

func (s *Store) finish(id string, at time.Time, status RunStatus, errMsg string, update func(r *Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.runs[id]
	if !exists {
		return ErrRunNotFound
	}
	if update != nil {
		update(run)
	}
	run.Status = status
	run.Error = errMsg
	run.FinishedAt = &at
	return nil
}

// Get retrieves a run by its ID.
func (s *Store) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, ErrRunNotFound
	}
	// Return a copy to prevent external modifications
	runCopy := *run
	return &runCopy, nil
}

// List returns runs newest first.
func (s *Store) List() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Last returns the most recently started run.
func (s *Store) Last() (*Run, bool) {
	runs := s.List()
	if len(runs) == 0 {
		return nil, false
	}
	return &runs[0], true
}

// evict drops the oldest finished runs beyond the limit. Callers hold mu.
func (s *Store) evict() {
	if len(s.runs) <= s.limit {
		return
	}
	finished := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		if r.Status != RunRunning {
			finished = append(finished, r)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].StartedAt.Before(finished[j].StartedAt) })
	for _, r := range finished {
		if len(s.runs) <= s.limit {
			return
		}
		delete(s.runs, r.ID)
	}
}
