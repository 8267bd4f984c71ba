package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"family-tasks/internal/model"
	"family-tasks/internal/store"
)

// ErrInvalidTask wraps every validation failure on task input.
var ErrInvalidTask = errors.New("invalid task")

// TaskInput represents data required to create a task, as typed by a user.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	DueDate     string `json:"dueDate"`
	Status      string `json:"status"`
	Recurring   string `json:"recurring"`
}

// TaskUpdate carries optional overrides as typed by a user.
type TaskUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Assignee    *string `json:"assignee"`
	DueDate     *string `json:"dueDate"`
	Status      *string `json:"status"`
	Recurring   *string `json:"recurring"`
}

// Snapshotter persists the whole task list.
type Snapshotter interface {
	ReplaceAll(ctx context.Context, tasks []model.Task) error
	LoadAll(ctx context.Context) ([]model.Task, error)
}

// TaskService validates input, drives the store and mirrors it to storage.
type TaskService struct {
	store     *store.Store
	snapshots Snapshotter

	// writeMu orders each mutation with its snapshot write, so the last
	// committed snapshot always matches the store.
	writeMu sync.Mutex
}

// NewTaskService wires a service; snapshots may be nil for a purely in-memory setup.
func NewTaskService(st *store.Store, snapshots Snapshotter) *TaskService {
	return &TaskService{store: st, snapshots: snapshots}
}

// Store exposes the underlying store to read-only consumers.
func (s *TaskService) Store() *store.Store {
	return s.store
}

func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (model.Task, error) {
	newTask, err := input.Validate()
	if err != nil {
		return model.Task{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	task := s.store.Add(newTask)
	s.persist(ctx)
	return task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id string, update TaskUpdate) (model.Task, error) {
	patch, err := update.Validate()
	if err != nil {
		return model.Task{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	task, err := s.store.Update(id, patch)
	if err != nil {
		return model.Task{}, err
	}
	s.persist(ctx)
	return task, nil
}

// ToggleTask flips pending and completed.
func (s *TaskService) ToggleTask(ctx context.Context, id string) (model.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	task, err := s.store.Toggle(id)
	if err != nil {
		return model.Task{}, err
	}
	s.persist(ctx)
	return task, nil
}

// DeleteTask removes a task; it can be brought back once with Undo.
func (s *TaskService) DeleteTask(ctx context.Context, id string) (model.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	task, err := s.store.Delete(id)
	if err != nil {
		return model.Task{}, err
	}
	s.persist(ctx)
	return task, nil
}

// Undo restores the most recently deleted task at the end of the list.
func (s *TaskService) Undo(ctx context.Context) (model.Task, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	task, ok := s.store.Restore()
	if ok {
		s.persist(ctx)
	}
	return task, ok
}

func (s *TaskService) GetTask(id string) (model.Task, error) {
	task, ok := s.store.Get(id)
	if !ok {
		return model.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (s *TaskService) ListTasks(filter store.Filter) []model.Task {
	return s.store.Filter(filter)
}

func (s *TaskService) Stats() model.Stats {
	return s.store.Stats()
}

// Hydrate loads the persisted snapshot into the store.
func (s *TaskService) Hydrate(ctx context.Context) (int, error) {
	if s.snapshots == nil {
		return 0, nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	tasks, err := s.snapshots.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	s.store.Load(tasks)
	return len(tasks), nil
}

// SeedDemo adds the sample household tasks when the store is empty.
func (s *TaskService) SeedDemo(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if len(s.store.Tasks()) > 0 {
		return 0, nil
	}
	for _, input := range DemoTasks {
		newTask, err := input.Validate()
		if err != nil {
			return 0, fmt.Errorf("demo task %q: %w", input.Title, err)
		}
		s.store.Add(newTask)
	}
	s.persist(ctx)
	return len(DemoTasks), nil
}

// persist mirrors the store; the in-memory list stays authoritative on failure.
// Callers hold writeMu.
func (s *TaskService) persist(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.ReplaceAll(ctx, s.store.Tasks()); err != nil {
		log.Printf("persist tasks: %v", err)
	}
}

// Validate checks required fields and closed sets and builds the store payload.
func (in TaskInput) Validate() (model.NewTask, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.NewTask{}, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	assignee := strings.TrimSpace(in.Assignee)
	if assignee == "" {
		return model.NewTask{}, fmt.Errorf("%w: assignee is required", ErrInvalidTask)
	}
	if strings.TrimSpace(in.DueDate) == "" {
		return model.NewTask{}, fmt.Errorf("%w: due date is required", ErrInvalidTask)
	}
	due, err := model.ParseDate(in.DueDate)
	if err != nil {
		return model.NewTask{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	if strings.TrimSpace(in.Recurring) == "" {
		return model.NewTask{}, fmt.Errorf("%w: recurrence is required", ErrInvalidTask)
	}
	recurring, err := model.ParseRecurrence(in.Recurring)
	if err != nil {
		return model.NewTask{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	status := model.StatusPending
	if strings.TrimSpace(in.Status) != "" {
		if status, err = model.ParseStatus(in.Status); err != nil {
			return model.NewTask{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
	}

	return model.NewTask{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Assignee:    assignee,
		DueDate:     due,
		Status:      status,
		Recurring:   recurring,
	}, nil
}

// Validate converts the typed overrides into a store patch.
func (u TaskUpdate) Validate() (model.Patch, error) {
	var patch model.Patch
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return model.Patch{}, fmt.Errorf("%w: title must not be empty", ErrInvalidTask)
		}
		patch.Title = &title
	}
	if u.Description != nil {
		desc := strings.TrimSpace(*u.Description)
		patch.Description = &desc
	}
	if u.Assignee != nil {
		assignee := strings.TrimSpace(*u.Assignee)
		if assignee == "" {
			return model.Patch{}, fmt.Errorf("%w: assignee must not be empty", ErrInvalidTask)
		}
		patch.Assignee = &assignee
	}
	if u.DueDate != nil {
		due, err := model.ParseDate(*u.DueDate)
		if err != nil {
			return model.Patch{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
		patch.DueDate = &due
	}
	if u.Status != nil {
		status, err := model.ParseStatus(*u.Status)
		if err != nil {
			return model.Patch{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
		patch.Status = &status
	}
	if u.Recurring != nil {
		recurring, err := model.ParseRecurrence(*u.Recurring)
		if err != nil {
			return model.Patch{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
		patch.Recurring = &recurring
	}
	return patch, nil
}

// DemoTasks is the sample household the dashboard starts with in demo mode.
var DemoTasks = []TaskInput{
	{Title: "Take out the trash", Assignee: "Dad", DueDate: "2023-05-15", Status: "completed", Recurring: "weekly"},
	{Title: "Do the dishes", Assignee: "Emma", DueDate: "2023-05-14", Status: "pending", Recurring: "daily"},
	{Title: "Vacuum living room", Assignee: "Mom", DueDate: "2023-05-16", Status: "pending", Recurring: "weekly"},
	{Title: "Mow the lawn", Assignee: "Dad", DueDate: "2023-05-20", Status: "pending", Recurring: "biweekly"},
	{Title: "Clean bedroom", Assignee: "Jack", DueDate: "2023-05-13", Status: "completed", Recurring: "weekly"},
	{Title: "Buy groceries", Assignee: "Mom", DueDate: "2023-05-13", Status: "completed", Recurring: "weekly"},
}
