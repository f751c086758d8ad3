package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type taskService struct {
	pool *pgxpool.Pool
}

// NewTaskService constructs a TaskService backed by PostgreSQL.
func NewTaskService(pool *pgxpool.Pool) TaskService {
	return &taskService{pool: pool}
}

func (s *taskService) Create(ctx context.Context, input TaskInput) (*Task, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	var taskID int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, priority, due_at, sla_hours, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		input.Title, input.Description, priority, input.DueAt, input.SLAHours, input.AssignedTo,
	).Scan(&taskID)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.Get(ctx, taskID)
}

func (s *taskService) Update(ctx context.Context, taskID int, update TaskUpdate) (*Task, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET title       = COALESCE($1, title),
		    description = COALESCE($2, description),
		    status      = COALESCE($3, status),
		    priority    = COALESCE($4, priority),
		    due_at      = COALESCE($5, due_at),
		    assigned_to = COALESCE($6, assigned_to),
		    updated_at  = NOW()
		WHERE id = $7`,
		update.Title, update.Description, update.Status, update.Priority,
		update.DueAt, update.AssignedTo, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, &NotFoundError{Entity: "task", Key: fmt.Sprint(taskID)}
	}
	return s.Get(ctx, taskID)
}

const taskColumns = `id, title, description, status, priority, due_at, sla_hours,
	       escalation_level, assigned_to, created_at, updated_at`

func (s *taskService) Get(ctx context.Context, taskID int) (*Task, error) {
	t := &Task{}
	err := s.pool.QueryRow(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1", taskID,
	).Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueAt, &t.SLAHours,
		&t.EscalationLevel, &t.AssignedTo, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "task", Key: fmt.Sprint(taskID)}
		}
		return nil, fmt.Errorf("get task %d: %w", taskID, err)
	}
	return t, nil
}

func (s *taskService) List(ctx context.Context, status *TaskStatus) ([]Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	args := []any{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueAt, &t.SLAHours,
			&t.EscalationLevel, &t.AssignedTo, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
