package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"family-tasks/internal/model"
	"family-tasks/internal/store"
)

// dueSoonDays is how far ahead a pending task counts as due soon.
const dueSoonDays = 2

// Digest is a point-in-time dashboard summary.
type Digest struct {
	Date    model.Date       `json:"date"`
	Stats   model.Stats      `json:"stats"`
	Family  []MemberProgress `json:"family"`
	Overdue []model.Task     `json:"overdue"`
	DueSoon []model.Task     `json:"dueSoon"`
}

// DigestService builds human-readable summaries for reports and notifications.
type DigestService struct {
	store  *store.Store
	family *FamilyService
}

func NewDigestService(st *store.Store, family *FamilyService) *DigestService {
	return &DigestService{store: st, family: family}
}

// Build collects the digest for the calendar day of now.
func (s *DigestService) Build(ctx context.Context, now time.Time) (Digest, error) {
	family, err := s.family.Roster(ctx)
	if err != nil {
		return Digest{}, err
	}
	tasks, stats := s.store.Snapshot()
	today := model.DateOf(now)

	digest := Digest{
		Date:    today,
		Stats:   stats,
		Family:  family,
		Overdue: []model.Task{},
		DueSoon: []model.Task{},
	}
	for _, task := range tasks {
		if task.IsCompleted() || task.DueDate.IsZero() {
			continue
		}
		switch days := today.DaysUntil(task.DueDate); {
		case days < 0:
			digest.Overdue = append(digest.Overdue, task)
		case days <= dueSoonDays:
			digest.DueSoon = append(digest.DueSoon, task)
		}
	}

	byDue := func(list []model.Task) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].DueDate.Before(list[j].DueDate)
		})
	}
	byDue(digest.Overdue)
	byDue(digest.DueSoon)
	return digest, nil
}

// DailySummary renders the digest as Telegram HTML.
func (s *DigestService) DailySummary(ctx context.Context, now time.Time) (string, error) {
	digest, err := s.Build(ctx, now)
	if err != nil {
		return "", err
	}
	return FormatHTML(digest), nil
}

// FormatHTML renders a digest with Telegram's HTML subset.
func FormatHTML(d Digest) string {
	var b strings.Builder
	b.WriteString("📋 <b>Family digest</b>\n")
	b.WriteString(fmt.Sprintf("🗓 %s\n\n", d.Date.Time().Format("Monday, 02 Jan 2006")))
	b.WriteString(fmt.Sprintf("Total: <b>%d</b> · Done: <b>%d</b> · Pending: <b>%d</b> · Completion: <b>%d%%</b>\n",
		d.Stats.TotalTasks, d.Stats.CompletedTasks, d.Stats.PendingTasks, d.Stats.CompletionRate))

	b.WriteString("\n👪 <b>Family progress</b>\n")
	if len(d.Family) == 0 {
		b.WriteString("— nobody on the roster yet\n")
	}
	for _, m := range d.Family {
		b.WriteString(fmt.Sprintf("• %s: %d/%d (%d%%)\n", html.EscapeString(m.Name), m.Completed, m.Total, m.Percent))
	}

	b.WriteString("\n⚠️ <b>Overdue</b>\n")
	if len(d.Overdue) == 0 {
		b.WriteString("— nothing overdue\n")
	}
	for _, task := range d.Overdue {
		b.WriteString(formatDigestTask(task, d.Date, true))
	}

	b.WriteString("\n⏳ <b>Due soon</b>\n")
	if len(d.DueSoon) == 0 {
		b.WriteString("— nothing due in the next days\n")
	}
	for _, task := range d.DueSoon {
		b.WriteString(formatDigestTask(task, d.Date, true))
	}

	return strings.TrimSpace(b.String())
}

// FormatText renders a digest as plain text for terminals and HTTP.
func FormatText(d Digest) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Family digest for %s\n", d.Date))
	b.WriteString(fmt.Sprintf("Total: %d  Completed: %d  Pending: %d  Completion: %d%%\n",
		d.Stats.TotalTasks, d.Stats.CompletedTasks, d.Stats.PendingTasks, d.Stats.CompletionRate))

	b.WriteString("\nFamily progress\n")
	for _, m := range d.Family {
		b.WriteString(fmt.Sprintf("  %-10s %d/%d (%d%%)\n", m.Name, m.Completed, m.Total, m.Percent))
	}

	b.WriteString("\nOverdue\n")
	if len(d.Overdue) == 0 {
		b.WriteString("  none\n")
	}
	for _, task := range d.Overdue {
		b.WriteString("  " + formatDigestTask(task, d.Date, false))
	}

	b.WriteString("\nDue soon\n")
	if len(d.DueSoon) == 0 {
		b.WriteString("  none\n")
	}
	for _, task := range d.DueSoon {
		b.WriteString("  " + formatDigestTask(task, d.Date, false))
	}
	return b.String()
}

func formatDigestTask(task model.Task, today model.Date, escape bool) string {
	title, assignee := task.Title, task.Assignee
	if escape {
		title, assignee = html.EscapeString(title), html.EscapeString(assignee)
	}

	days := today.DaysUntil(task.DueDate)
	var when string
	switch {
	case days < 0:
		when = fmt.Sprintf("%d day(s) late", -days)
	case days == 0:
		when = "today"
	default:
		when = fmt.Sprintf("in %d day(s)", days)
	}
	return fmt.Sprintf("%s (%s) · due %s, %s\n", title, assignee, task.DueDate, when)
}
