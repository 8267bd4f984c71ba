package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"family-tasks/internal/model"
	"family-tasks/internal/service"
)

const (
	iconDefault   = "🟢"
	iconDue       = "⏳"
	iconOverdue   = "⚠️"
	iconCompleted = "✅"
)

func formatTaskList(tasks []model.Task, stats model.Stats, now time.Time) string {
	var b strings.Builder
	b.WriteString("📋 <b>Family tasks</b>\n")
	b.WriteString("Tap a button to mark a task done or delete it.\n\n")
	today := model.DateOf(now)
	for i, task := range tasks {
		b.WriteString(formatTask(i+1, task, today))
	}
	b.WriteString(fmt.Sprintf("Done %d of %d (%d%%)", stats.CompletedTasks, stats.TotalTasks, stats.CompletionRate))
	return b.String()
}

func formatTask(n int, task model.Task, today model.Date) string {
	var b strings.Builder
	icon := iconDefault
	days := today.DaysUntil(task.DueDate)
	switch {
	case task.IsCompleted():
		icon = iconCompleted
	case task.DueDate.IsZero():
	case days < 0:
		icon = iconOverdue
	case days <= 2:
		icon = iconDue
	}

	title := escape(task.Title)
	if task.IsCompleted() {
		title = "<s>" + title + "</s>"
	}
	b.WriteString(fmt.Sprintf("%d. %s <b>%s</b> · %s\n", n, icon, title, escape(task.Assignee)))

	due := task.DueDate.String()
	if !task.IsCompleted() && !task.DueDate.IsZero() {
		switch {
		case days < 0:
			due += " — <b>overdue</b>"
		case days == 0:
			due += " (today)"
		case days == 1:
			due += " (tomorrow)"
		}
	}
	b.WriteString(fmt.Sprintf("   📅 %s · 🔁 %s\n", due, task.Recurring))
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatStats(stats model.Stats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Overview</b>\n")
	b.WriteString(fmt.Sprintf("Total: <b>%d</b>\nCompleted: <b>%d</b>\nPending: <b>%d</b>\nCompletion: <b>%d%%</b>\n",
		stats.TotalTasks, stats.CompletedTasks, stats.PendingTasks, stats.CompletionRate))

	if len(stats.ByAssignee) > 0 {
		names := make([]string, 0, len(stats.ByAssignee))
		for name := range stats.ByAssignee {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("\n<b>By person</b>\n")
		for _, name := range names {
			per := stats.ByAssignee[name]
			b.WriteString(fmt.Sprintf("• %s: %d/%d\n", escape(name), per.Completed, per.Total))
		}
	}
	return strings.TrimSpace(b.String())
}

func formatRoster(roster []service.MemberProgress) string {
	if len(roster) == 0 {
		return "Nobody is on the family roster yet."
	}
	var b strings.Builder
	b.WriteString("👪 <b>Family</b>\n")
	for _, m := range roster {
		b.WriteString(fmt.Sprintf("\n<b>%s</b> · %d/%d done (%d%%)\n", escape(m.Name), m.Completed, m.Total, m.Percent))
		if len(m.RecentTasks) == 0 {
			b.WriteString("   no tasks yet\n")
			continue
		}
		for _, title := range m.RecentTasks {
			b.WriteString(fmt.Sprintf("   • %s\n", escape(title)))
		}
	}
	return strings.TrimSpace(b.String())
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
