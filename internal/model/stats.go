package model

// AssigneeStats is the per-member breakdown of the dashboard.
type AssigneeStats struct {
	Total     int `json:"total" yaml:"total"`
	Completed int `json:"completed" yaml:"completed"`
}

// Stats is derived from the task list and never stored.
type Stats struct {
	TotalTasks     int                      `json:"totalTasks" yaml:"totalTasks"`
	CompletedTasks int                      `json:"completedTasks" yaml:"completedTasks"`
	PendingTasks   int                      `json:"pendingTasks" yaml:"pendingTasks"`
	CompletionRate int                      `json:"completionRate" yaml:"completionRate"`
	ByAssignee     map[string]AssigneeStats `json:"byAssignee" yaml:"byAssignee"`
}

// Clone returns a copy that shares no map with s.
func (s Stats) Clone() Stats {
	out := s
	out.ByAssignee = make(map[string]AssigneeStats, len(s.ByAssignee))
	for name, st := range s.ByAssignee {
		out.ByAssignee[name] = st
	}
	return out
}
