package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"family-tasks/internal/model"
	"family-tasks/internal/repository"
	"family-tasks/internal/store"
)

var (
	// ErrUnknownMember is returned when a roster name does not exist.
	ErrUnknownMember = errors.New("unknown family member")
	// ErrInvalidMember wraps validation failures on roster input.
	ErrInvalidMember = errors.New("invalid family member")
)

const recentTaskCount = 3

// MemberProgress is one card of the family page.
type MemberProgress struct {
	Name        string   `json:"name" yaml:"name"`
	Email       string   `json:"email,omitempty" yaml:"email,omitempty"`
	OnRoster    bool     `json:"onRoster" yaml:"onRoster"`
	Total       int      `json:"total" yaml:"total"`
	Completed   int      `json:"completed" yaml:"completed"`
	Percent     int      `json:"percent" yaml:"percent"`
	RecentTasks []string `json:"recentTasks" yaml:"recentTasks"`
}

// FamilyService joins the roster with live task statistics.
type FamilyService struct {
	members *repository.MemberRepository
	store   *store.Store
}

func NewFamilyService(members *repository.MemberRepository, st *store.Store) *FamilyService {
	return &FamilyService{members: members, store: st}
}

func (s *FamilyService) Members(ctx context.Context) ([]model.Member, error) {
	return s.members.List(ctx)
}

// Names returns roster names in roster order.
func (s *FamilyService) Names(ctx context.Context) ([]string, error) {
	members, err := s.members.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	return names, nil
}

func (s *FamilyService) AddMember(ctx context.Context, name, email string) (*model.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidMember)
	}
	email = strings.TrimSpace(email)
	if email != "" && !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email %q is not valid", ErrInvalidMember, email)
	}
	return s.members.GetOrCreate(ctx, name, email)
}

func (s *FamilyService) RemoveMember(ctx context.Context, name string) error {
	err := s.members.Delete(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownMember, name)
	}
	return err
}

// Roster lists every roster member with their progress, followed by any
// assignee who has tasks but is not on the roster.
func (s *FamilyService) Roster(ctx context.Context) ([]MemberProgress, error) {
	members, err := s.members.List(ctx)
	if err != nil {
		return nil, err
	}
	tasks, stats := s.store.Snapshot()

	out := make([]MemberProgress, 0, len(members))
	seen := make(map[string]bool)
	for _, m := range members {
		progress := buildProgress(m.Name, tasks, stats)
		progress.Email = m.Email
		progress.OnRoster = true
		out = append(out, progress)
		seen[strings.ToLower(m.Name)] = true
	}

	assignees := make([]string, 0, len(stats.ByAssignee))
	for name := range stats.ByAssignee {
		assignees = append(assignees, name)
	}
	// Sorted first so case variants always resolve to the same display name.
	sort.Strings(assignees)
	for _, name := range assignees {
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		out = append(out, buildProgress(name, tasks, stats))
	}
	return out, nil
}

func buildProgress(name string, tasks []model.Task, stats model.Stats) MemberProgress {
	progress := MemberProgress{Name: name, RecentTasks: []string{}}
	for assignee, per := range stats.ByAssignee {
		if strings.EqualFold(assignee, name) {
			progress.Total += per.Total
			progress.Completed += per.Completed
		}
	}
	progress.Percent = store.Percent(progress.Completed, progress.Total)

	var mine []model.Task
	for i := len(tasks) - 1; i >= 0; i-- {
		if strings.EqualFold(tasks[i].Assignee, name) {
			mine = append(mine, tasks[i])
		}
	}
	// Newest first; later insertions win ties.
	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].CreatedAt.After(mine[j].CreatedAt)
	})
	if len(mine) > recentTaskCount {
		mine = mine[:recentTaskCount]
	}
	for _, task := range mine {
		progress.RecentTasks = append(progress.RecentTasks, task.Title)
	}
	return progress
}
