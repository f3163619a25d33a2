package models

// ProgressAggregate is the durable summary of all completed sessions.
// History is ordered newest first.
type ProgressAggregate struct {
	History       []SessionRecord `json:"history"`
	TotalSessions int             `json:"total_sessions"`
	TotalReps     int             `json:"total_reps"`
	CurrentStreak int             `json:"current_streak"`
}

// Clone returns a copy that shares no memory with a.
func (a ProgressAggregate) Clone() ProgressAggregate {
	out := a
	out.History = make([]SessionRecord, len(a.History))
	copy(out.History, a.History)
	return out
}

// Consistent reports whether the totals agree with the history.
func (a ProgressAggregate) Consistent() bool {
	if a.TotalSessions != len(a.History) || a.CurrentStreak < 0 {
		return false
	}
	sum := 0
	for _, r := range a.History {
		sum += r.TotalReps
	}
	return sum == a.TotalReps
}

// DayBucket is one day of the weekly histogram.
type DayBucket struct {
	Date     string `json:"date"`
	Label    string `json:"label"`
	Reps     int    `json:"reps"`
	Sessions int    `json:"sessions"`
}

// ProgressSummary holds the dashboard totals.
type ProgressSummary struct {
	TotalSessions      int `json:"total_sessions"`
	TotalReps          int `json:"total_reps"`
	CurrentStreak      int `json:"current_streak"`
	AverageRepsSession int `json:"average_reps_per_session"`
}
