package dto

import "todoTracker/internal/models/task"

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatsResponse is the JSON shape of an owner's task counters.
type StatsResponse struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Completed    int `json:"completed"`
	Pending      int `json:"pending"`
	InProgress   int `json:"in_progress"`
	HighPriority int `json:"high_priority"`
	Overdue      int `json:"overdue"`
}

func FromStats(s task.Stats) StatsResponse {
	return StatsResponse{
		Total:        s.Total,
		Active:       s.Active,
		Completed:    s.Completed,
		Pending:      s.Pending,
		InProgress:   s.InProgress,
		HighPriority: s.HighPriority,
		Overdue:      s.Overdue,
	}
}
