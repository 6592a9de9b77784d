package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/ports"
)

type TaskRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewTaskRepository(db *sql.DB, log *zap.Logger) ports.TaskRepository {
	return &TaskRepository{db: db, log: log}
}

const taskColumns = `id, session_id, title, description, status, category, priority, due_date, created_at, updated_at`

// Save creates or updates the task.
func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	query := `
	INSERT INTO tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		status = excluded.status,
		category = excluded.category,
		priority = excluded.priority,
		due_date = excluded.due_date,
		updated_at = excluded.updated_at`

	var due interface{}
	if task.DueDate != nil {
		due = task.DueDate.UnixNano()
	}
	_, err := r.db.ExecContext(ctx, query,
		task.ID, task.SessionID, task.Title, task.Description, string(task.Status),
		task.Category, string(task.Priority), due, task.CreatedAt.UnixNano(), task.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *TaskRepository) FindBySession(ctx context.Context, sessionID string, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE session_id = ? ORDER BY created_at DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*domain.Task, error) {
	var task domain.Task
	var status, priority string
	var due sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&task.ID, &task.SessionID, &task.Title, &task.Description, &status,
		&task.Category, &priority, &due, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task row: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	task.Priority = domain.Priority(priority)
	if due.Valid {
		d := time.Unix(0, due.Int64)
		task.DueDate = &d
	}
	task.CreatedAt = time.Unix(0, createdAt)
	task.UpdatedAt = time.Unix(0, updatedAt)
	return &task, nil
}
