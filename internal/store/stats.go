package store

import (
	"math"

	"family-tasks/internal/model"
)

// ComputeStats derives dashboard statistics from a task list.
func ComputeStats(tasks []model.Task) model.Stats {
	stats := model.Stats{
		TotalTasks: len(tasks),
		ByAssignee: make(map[string]model.AssigneeStats),
	}

	for _, task := range tasks {
		per := stats.ByAssignee[task.Assignee]
		per.Total++
		if task.IsCompleted() {
			stats.CompletedTasks++
			per.Completed++
		}
		stats.ByAssignee[task.Assignee] = per
	}

	stats.PendingTasks = stats.TotalTasks - stats.CompletedTasks
	stats.CompletionRate = Percent(stats.CompletedTasks, stats.TotalTasks)
	return stats
}

// Percent rounds part/total to a whole percentage; a zero total yields 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
