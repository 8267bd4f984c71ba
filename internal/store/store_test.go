package store

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"family-tasks/internal/model"
)

var fixedNow = time.Date(2023, time.May, 12, 9, 30, 0, 0, time.UTC)

func newTestStore() *Store {
	n := 0
	return New(
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("task-%d", n)
		}),
	)
}

func newTask(title, assignee string, status model.Status) model.NewTask {
	return model.NewTask{
		Title:     title,
		Assignee:  assignee,
		DueDate:   model.NewDate(2023, time.May, 15),
		Status:    status,
		Recurring: model.RecurWeekly,
	}
}

func TestAddAssignsUniqueIDs(t *testing.T) {
	s := New()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		task := s.Add(newTask(fmt.Sprintf("task %d", i), "Mom", ""))
		if task.ID == "" {
			t.Fatal("empty id")
		}
		if seen[task.ID] {
			t.Fatalf("duplicate id %s", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestAddAppendsWithGeneratedFields(t *testing.T) {
	s := newTestStore()
	s.Add(newTask("Do the dishes", "Emma", ""))
	in := newTask("Mow the lawn", "Dad", "")
	in.Description = "front and back"

	added := s.Add(in)

	tasks := s.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("len = %d, want 2", len(tasks))
	}
	last := tasks[len(tasks)-1]
	want := model.Task{
		ID:          "task-2",
		Title:       "Mow the lawn",
		Description: "front and back",
		Assignee:    "Dad",
		DueDate:     model.NewDate(2023, time.May, 15),
		Status:      model.StatusPending,
		Recurring:   model.RecurWeekly,
		CreatedAt:   fixedNow,
	}
	if last != want {
		t.Errorf("last = %+v, want %+v", last, want)
	}
	if added != last {
		t.Errorf("returned task %+v differs from stored %+v", added, last)
	}
}

func TestAddKeepsExplicitStatus(t *testing.T) {
	s := newTestStore()
	task := s.Add(newTask("Buy groceries", "Mom", model.StatusCompleted))
	if task.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", task.Status)
	}
}

func TestUpdateStatusOnlyChangesStatus(t *testing.T) {
	s := newTestStore()
	before := s.Add(newTask("Vacuum", "Mom", ""))

	status := model.StatusCompleted
	after, err := s.Update(before.ID, model.Patch{Status: &status})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := before
	want.Status = model.StatusCompleted
	if after != want {
		t.Errorf("after = %+v, want %+v", after, want)
	}
	stored, _ := s.Get(before.ID)
	if stored != want {
		t.Errorf("stored = %+v, want %+v", stored, want)
	}
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	s := newTestStore()
	s.Add(newTask("Vacuum", "Mom", ""))
	before := s.Tasks()

	title := "changed"
	_, err := s.Update("missing", model.Patch{Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !reflect.DeepEqual(before, s.Tasks()) {
		t.Error("collection changed on unknown id")
	}
}

func TestDeleteThenRestoreAppendsAtEnd(t *testing.T) {
	s := newTestStore()
	a := s.Add(newTask("A", "Mom", ""))
	b := s.Add(newTask("B", "Dad", ""))
	c := s.Add(newTask("C", "Emma", ""))

	if _, err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := ids(s.Tasks()); !reflect.DeepEqual(got, []string{b.ID, c.ID}) {
		t.Fatalf("after delete = %v", got)
	}

	restored, ok := s.Restore()
	if !ok {
		t.Fatal("Restore reported nothing to restore")
	}
	if restored != a {
		t.Errorf("restored = %+v, want %+v", restored, a)
	}
	if got := ids(s.Tasks()); !reflect.DeepEqual(got, []string{b.ID, c.ID, a.ID}) {
		t.Errorf("after restore = %v, want restored task last", got)
	}
}

func TestRestoreTwiceIsNoop(t *testing.T) {
	s := newTestStore()
	a := s.Add(newTask("A", "Mom", ""))
	s.Add(newTask("B", "Dad", ""))
	if _, err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Restore(); !ok {
		t.Fatal("first restore failed")
	}
	before := s.Tasks()

	if _, ok := s.Restore(); ok {
		t.Error("second restore should report false")
	}
	if !reflect.DeepEqual(before, s.Tasks()) {
		t.Error("second restore changed the collection")
	}
}

func TestRestoreOnEmptyBuffer(t *testing.T) {
	s := newTestStore()
	if _, ok := s.Restore(); ok {
		t.Error("restore on fresh store should report false")
	}
	if len(s.Tasks()) != 0 {
		t.Error("restore on fresh store added tasks")
	}
}

func TestDeleteOverwritesUndoBuffer(t *testing.T) {
	s := newTestStore()
	a := s.Add(newTask("A", "Mom", ""))
	b := s.Add(newTask("B", "Dad", ""))

	s.Delete(a.ID)
	s.Delete(b.ID)

	last, ok := s.LastDeleted()
	if !ok || last.ID != b.ID {
		t.Fatalf("LastDeleted = %+v, %v; want %s", last, ok, b.ID)
	}
	s.Restore()
	if got := ids(s.Tasks()); !reflect.DeepEqual(got, []string{b.ID}) {
		t.Errorf("tasks = %v, want only %s", got, b.ID)
	}
}

func TestDeleteUnknownKeepsBuffer(t *testing.T) {
	s := newTestStore()
	a := s.Add(newTask("A", "Mom", ""))
	s.Delete(a.ID)

	if _, err := s.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if last, ok := s.LastDeleted(); !ok || last.ID != a.ID {
		t.Errorf("undo buffer lost after unknown delete: %+v, %v", last, ok)
	}
}

func TestToggle(t *testing.T) {
	s := newTestStore()
	a := s.Add(newTask("A", "Mom", ""))

	got, err := s.Toggle(a.ID)
	if err != nil || got.Status != model.StatusCompleted {
		t.Fatalf("Toggle = %+v, %v", got, err)
	}
	got, _ = s.Toggle(a.ID)
	if got.Status != model.StatusPending {
		t.Errorf("second toggle = %q, want pending", got.Status)
	}
	if _, err := s.Toggle("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	s := newTestStore()
	stats := s.Stats()
	if stats.TotalTasks != 0 || stats.CompletionRate != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
	if stats.ByAssignee == nil {
		t.Error("ByAssignee should be an empty map, not nil")
	}
}

func TestStatsPerAssignee(t *testing.T) {
	s := newTestStore()
	s.Add(newTask("A", "Mom", model.StatusCompleted))
	s.Add(newTask("B", "Mom", model.StatusPending))
	s.Add(newTask("C", "Mom", model.StatusCompleted))
	s.Add(newTask("D", "Dad", model.StatusPending))

	stats := s.Stats()
	if got := stats.ByAssignee["Mom"]; got != (model.AssigneeStats{Total: 3, Completed: 2}) {
		t.Errorf("Mom = %+v, want total=3 completed=2", got)
	}
	if got := stats.ByAssignee["Dad"]; got != (model.AssigneeStats{Total: 1, Completed: 0}) {
		t.Errorf("Dad = %+v", got)
	}
	if stats.TotalTasks != 4 || stats.CompletedTasks != 2 || stats.PendingTasks != 2 {
		t.Errorf("totals = %+v", stats)
	}
	if stats.CompletionRate != 50 {
		t.Errorf("rate = %d, want 50", stats.CompletionRate)
	}
}

func TestStatsFollowMutations(t *testing.T) {
	s := newTestStore()
	a := s.Add(newTask("A", "Mom", ""))
	s.Add(newTask("B", "Mom", ""))
	s.Add(newTask("C", "Dad", ""))

	s.Toggle(a.ID)
	if got := s.Stats().CompletionRate; got != 33 {
		t.Errorf("rate after toggle = %d, want 33", got)
	}

	s.Delete(a.ID)
	stats := s.Stats()
	if stats.CompletedTasks != 0 || stats.TotalTasks != 2 {
		t.Errorf("stats after delete = %+v", stats)
	}

	s.Restore()
	tasks, stats := s.Snapshot()
	if len(tasks) != stats.TotalTasks || stats.CompletionRate != 33 {
		t.Errorf("snapshot mismatch: %d tasks, stats %+v", len(tasks), stats)
	}
}

func TestStatsCloneIsIndependent(t *testing.T) {
	s := newTestStore()
	s.Add(newTask("A", "Mom", ""))
	stats := s.Stats()
	stats.ByAssignee["Mom"] = model.AssigneeStats{Total: 99}

	if got := s.Stats().ByAssignee["Mom"].Total; got != 1 {
		t.Errorf("store stats mutated through copy: total = %d", got)
	}
}

func TestFilter(t *testing.T) {
	s := newTestStore()
	s.Add(newTask("Take out the trash", "Dad", model.StatusCompleted))
	s.Add(newTask("Do the dishes", "Emma", ""))
	vacuum := newTask("Vacuum living room", "Mom", "")
	vacuum.Description = "including the rug"
	s.Add(vacuum)

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"task-1", "task-2", "task-3"}},
		{"pending", Filter{Status: model.StatusPending}, []string{"task-2", "task-3"}},
		{"completed", Filter{Status: model.StatusCompleted}, []string{"task-1"}},
		{"assignee case-insensitive", Filter{Assignee: "mom"}, []string{"task-3"}},
		{"title search", Filter{Query: "DISHES"}, []string{"task-2"}},
		{"description search", Filter{Query: "rug"}, []string{"task-3"}},
		{"combined miss", Filter{Status: model.StatusCompleted, Assignee: "Mom"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ids(s.Filter(tc.filter)); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Filter = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLoadReplacesAndClearsBuffer(t *testing.T) {
	s := newTestStore()
	a := s.Add(newTask("A", "Mom", ""))
	s.Delete(a.ID)

	s.Load([]model.Task{{ID: "x", Title: "X", Assignee: "Jack", Status: model.StatusCompleted}})

	if got := ids(s.Tasks()); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("tasks = %v", got)
	}
	if _, ok := s.LastDeleted(); ok {
		t.Error("Load should clear the undo buffer")
	}
	if s.Stats().CompletionRate != 100 {
		t.Errorf("rate = %d, want 100", s.Stats().CompletionRate)
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	s := newTestStore()
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	a := s.Add(newTask("A", "Mom", ""))
	s.Toggle(a.ID)
	s.Delete(a.ID)
	s.Restore()

	wantKinds := []ChangeKind{ChangeAdded, ChangeUpdated, ChangeDeleted, ChangeRestored}
	for i, want := range wantKinds {
		select {
		case c := <-ch:
			if c.Kind != want {
				t.Errorf("change %d kind = %s, want %s", i, c.Kind, want)
			}
			if c.Task.ID != a.ID {
				t.Errorf("change %d task = %s", i, c.Task.ID)
			}
		default:
			t.Fatalf("missing change %d", i)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := newTestStore()
	ch := s.Subscribe()
	s.Unsubscribe(ch)
	s.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	s.Add(newTask("A", "Mom", ""))
}

func TestConcurrentChangesArriveInOrder(t *testing.T) {
	s := newTestStore()
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	const writers = 40
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(newTask(fmt.Sprintf("task %d", i), "Mom", ""))
		}(i)
	}
	wg.Wait()

	for want := 1; want <= writers; want++ {
		change := <-ch
		if change.Stats.TotalTasks != want {
			t.Fatalf("change %d carries total %d", want, change.Stats.TotalTasks)
		}
		if change.Task.ID != fmt.Sprintf("task-%d", want) {
			t.Fatalf("change %d is for %s", want, change.Task.ID)
		}
	}
}

func TestPercent(t *testing.T) {
	cases := []struct{ part, total, want int }{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{3, 3, 100},
	}
	for _, tc := range cases {
		if got := Percent(tc.part, tc.total); got != tc.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tc.part, tc.total, got, tc.want)
		}
	}
}

func ids(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.ID)
	}
	return out
}
