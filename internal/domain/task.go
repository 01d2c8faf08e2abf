package domain

import (
	"strconv"
	"strings"
	"time"
)

// Priority orders tasks before dispatch; higher values are dequeued first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

// String returns the lower-case priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// ParsePriority accepts either a name ("high") or its numeric value ("3").
// Anything unrecognised falls back to PriorityLow, matching how blank source rows are treated.
func ParsePriority(value string) Priority {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "normal":
		return PriorityNormal
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	case "low", "":
		return PriorityLow
	}
	if n, err := strconv.Atoi(value); err == nil && n >= int(PriorityLow) && n <= int(PriorityUrgent) {
		return Priority(n)
	}
	return PriorityLow
}

// TaskStatus enumerates task lifecycle milestones.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusRetry      TaskStatus = "retry"
)

// Terminal reports whether no further processing is expected for the status.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one unit of requested work owned by the task source.
type Task struct {
	ID        string
	Prompt    string
	Priority  Priority
	Status    TaskStatus
	Category  string
	Row       int
	Ref       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns the transient copy the orchestrator works on.
func (t Task) Clone() Task {
	return t
}
