// Package store holds the authoritative in-memory task list.
//
// A Store is created once at the application root and passed to every
// consumer. All mutations recompute the derived statistics and publish their
// Change before the lock is released, so Snapshot never pairs a task list
// with stale stats and subscribers see changes in commit order.
package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"family-tasks/internal/model"
)

// ErrNotFound is returned when no task matches the given id.
var ErrNotFound = errors.New("task not found")

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// Store keeps tasks in insertion order plus a single-slot undo buffer.
type Store struct {
	mu          sync.RWMutex
	tasks       []model.Task
	lastDeleted *model.Task
	stats       model.Stats

	now   func() time.Time
	newID func() string

	subMu sync.RWMutex
	subs  map[chan Change]struct{}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
		subs:  make(map[chan Change]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stats = ComputeStats(nil)
	return s
}

// Add assigns an id and creation time, then appends the task.
func (s *Store) Add(in model.NewTask) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := model.Task{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Assignee:    in.Assignee,
		DueDate:     in.DueDate,
		Status:      in.Status,
		Recurring:   in.Recurring,
		CreatedAt:   s.now(),
	}
	if task.Status == "" {
		task.Status = model.StatusPending
	}
	s.tasks = append(s.tasks, task)
	s.publish(Change{Kind: ChangeAdded, Task: task, Stats: s.recompute()})
	return task
}

// Update merges patch onto the task with the given id.
func (s *Store) Update(id string, patch model.Patch) (model.Task, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return model.Task{}, ErrNotFound
	}
	patch.Apply(&s.tasks[idx])
	task := s.tasks[idx]
	s.publish(Change{Kind: ChangeUpdated, Task: task, Stats: s.recompute()})
	s.mu.Unlock()
	return task, nil
}

// Toggle flips a task between pending and completed.
func (s *Store) Toggle(id string) (model.Task, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return model.Task{}, ErrNotFound
	}
	s.tasks[idx].Status = s.tasks[idx].Status.Toggled()
	task := s.tasks[idx]
	s.publish(Change{Kind: ChangeUpdated, Task: task, Stats: s.recompute()})
	s.mu.Unlock()
	return task, nil
}

// Delete removes the task and keeps it as the only undo candidate.
// An unknown id leaves both the list and the undo buffer untouched.
func (s *Store) Delete(id string) (model.Task, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return model.Task{}, ErrNotFound
	}
	task := s.tasks[idx]
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	deleted := task
	s.lastDeleted = &deleted
	s.publish(Change{Kind: ChangeDeleted, Task: task, Stats: s.recompute()})
	s.mu.Unlock()
	return task, nil
}

// Restore re-appends the last deleted task at the end of the list and
// empties the buffer. It reports false when there was nothing to restore.
func (s *Store) Restore() (model.Task, bool) {
	s.mu.Lock()
	if s.lastDeleted == nil {
		s.mu.Unlock()
		return model.Task{}, false
	}
	task := *s.lastDeleted
	s.lastDeleted = nil
	s.tasks = append(s.tasks, task)
	s.publish(Change{Kind: ChangeRestored, Task: task, Stats: s.recompute()})
	s.mu.Unlock()
	return task, true
}

// Load replaces the whole list, e.g. when hydrating from persistence.
// The undo buffer is cleared.
func (s *Store) Load(tasks []model.Task) {
	s.mu.Lock()
	s.tasks = append([]model.Task(nil), tasks...)
	s.lastDeleted = nil
	s.publish(Change{Kind: ChangeLoaded, Stats: s.recompute()})
	s.mu.Unlock()
}

// Tasks returns a copy of the list in insertion order.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Task(nil), s.tasks...)
}

// Get looks up a single task.
func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Task{}, false
	}
	return s.tasks[idx], true
}

// Stats returns the statistics derived from the current list.
func (s *Store) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Clone()
}

// Snapshot returns the list and its statistics read under one lock.
func (s *Store) Snapshot() ([]model.Task, model.Stats) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Task(nil), s.tasks...), s.stats.Clone()
}

// LastDeleted returns the task an Undo would bring back.
func (s *Store) LastDeleted() (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastDeleted == nil {
		return model.Task{}, false
	}
	return *s.lastDeleted, true
}

// Filter narrows the task list. Zero fields match everything.
type Filter struct {
	Status   model.Status
	Assignee string
	Query    string
}

// Filter returns matching tasks in insertion order.
func (s *Store) Filter(f Filter) []model.Task {
	assignee := strings.TrimSpace(f.Assignee)
	query := strings.ToLower(strings.TrimSpace(f.Query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if f.Status != "" && task.Status != f.Status {
			continue
		}
		if assignee != "" && !strings.EqualFold(task.Assignee, assignee) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(task.Title), query) &&
			!strings.Contains(strings.ToLower(task.Description), query) {
			continue
		}
		out = append(out, task)
	}
	return out
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// recompute must be called with mu held for writing.
func (s *Store) recompute() model.Stats {
	s.stats = ComputeStats(s.tasks)
	return s.stats.Clone()
}
