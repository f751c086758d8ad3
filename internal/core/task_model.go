package core

import (
	"context"
	"time"
)

// TaskStatus is the work item state.
type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// TaskPriority orders tasks for operators. The SLA sweep raises it one rung
// per escalation step.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// RaisePriority returns the next rung up, capped at urgent.
func RaisePriority(p TaskPriority) TaskPriority {
	switch p {
	case PriorityLow:
		return PriorityNormal
	case PriorityNormal:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}

// Task is an operational work item. Tasks with an SLA are subject to the
// escalation sweep; escalation_level only ever goes up.
type Task struct {
	ID              int          `json:"id"`
	Title           string       `json:"title"`
	Description     *string      `json:"description,omitempty"`
	Status          TaskStatus   `json:"status"`
	Priority        TaskPriority `json:"priority"`
	DueAt           *time.Time   `json:"due_at,omitempty"`
	SLAHours        *int         `json:"sla_hours,omitempty"`
	EscalationLevel int          `json:"escalation_level"`
	AssignedTo      *string      `json:"assigned_to,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TaskInput holds the fields for creating a task.
type TaskInput struct {
	Title       string
	Description *string
	Priority    TaskPriority
	DueAt       *time.Time
	SLAHours    *int
	AssignedTo  *string
}

// TaskUpdate is a partial update: nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	DueAt       *time.Time
	AssignedTo  *string
}

// TaskService manages operational work items.
type TaskService interface {
	Create(ctx context.Context, input TaskInput) (*Task, error)
	Update(ctx context.Context, taskID int, update TaskUpdate) (*Task, error)
	Get(ctx context.Context, taskID int) (*Task, error)

	// List returns tasks, optionally filtered by status (nil = all),
	// newest first.
	List(ctx context.Context, status *TaskStatus) ([]Task, error)
}
