package todo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"todo_tracker/internal/apperror"
	"todo_tracker/internal/utils"

	"github.com/sirupsen/logrus"
)

type TodoRepository struct{}

type TodoRepositoryInterface interface {
	Create(ctx context.Context, db utils.DBTX, todo *Todo) (int64, error)
	GetByID(ctx context.Context, db utils.DBTX, id int64) (*Todo, error)
	GetByIDForUpdate(ctx context.Context, db utils.DBTX, id int64) (*Todo, error)
	List(ctx context.Context, db utils.DBTX, userID int64, filter ListFilter) ([]*Todo, int64, error)
	Update(ctx context.Context, db utils.DBTX, todo *Todo) error
	Delete(ctx context.Context, db utils.DBTX, id int64) error
}

func NewTodoRepository() TodoRepositoryInterface {
	return &TodoRepository{}
}

const selectTodo = `
	SELECT
		t.id, t.user_id, u.username, t.title, t.description,
		t.completed, t.priority, t.created_at, t.updated_at
	FROM todos t
	JOIN users u ON u.id = t.user_id
`

func (r *TodoRepository) Create(ctx context.Context, db utils.DBTX, todo *Todo) (int64, error) {
	query := `
		INSERT INTO todos (
			user_id, title, description, completed, priority, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := db.QueryRowContext(
		ctx,
		query,
		todo.UserID,
		todo.Title,
		todo.Description,
		todo.Completed,
		string(todo.Priority),
		todo.CreatedAt,
		todo.UpdatedAt,
	).Scan(&todo.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", todo.UserID).Error("Failed to create todo")
		return 0, fmt.Errorf("insert todo: %w", err)
	}

	return todo.ID, nil
}

// GetByID looks the todo up globally, not scoped to any user.
func (r *TodoRepository) GetByID(ctx context.Context, db utils.DBTX, id int64) (*Todo, error) {
	return r.get(ctx, db, selectTodo+` WHERE t.id = $1`, id)
}

// GetByIDForUpdate locks the todo row for the rest of the transaction.
func (r *TodoRepository) GetByIDForUpdate(ctx context.Context, db utils.DBTX, id int64) (*Todo, error) {
	return r.get(ctx, db, selectTodo+` WHERE t.id = $1 FOR UPDATE OF t`, id)
}

func (r *TodoRepository) get(ctx context.Context, db utils.DBTX, query string, id int64) (*Todo, error) {
	todo, err := scanTodo(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrTodoNotFound
		}
		logrus.WithError(err).WithField("todo_id", id).Error("Failed to get todo")
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return todo, nil
}

// List returns one page of the user's todos, newest first, and the total
// number of todos matching the filter.
func (r *TodoRepository) List(ctx context.Context, db utils.DBTX, userID int64, filter ListFilter) ([]*Todo, int64, error) {
	conditions := []string{"t.user_id = $1"}
	args := []any{userID}

	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		conditions = append(conditions, fmt.Sprintf("t.completed = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, string(*filter.Priority))
		conditions = append(conditions, fmt.Sprintf("t.priority = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM todos t` + where
	if err := db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count todos: %w", err)
	}

	listArgs := append(args, filter.Size, filter.Offset())
	query := selectTodo + where + fmt.Sprintf(
		" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d",
		len(listArgs)-1, len(listArgs),
	)

	rows, err := db.QueryContext(ctx, query, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]*Todo, 0, filter.Size)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, todo)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return todos, total, nil
}

// Update writes the mutable columns. user_id and created_at are never touched.
func (r *TodoRepository) Update(ctx context.Context, db utils.DBTX, todo *Todo) error {
	query := `
		UPDATE todos
		SET title = $1,
		    description = $2,
		    completed = $3,
		    priority = $4,
		    updated_at = $5
		WHERE id = $6
	`
	res, err := db.ExecContext(
		ctx,
		query,
		todo.Title,
		todo.Description,
		todo.Completed,
		string(todo.Priority),
		todo.UpdatedAt,
		todo.ID,
	)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	return requireRow(res)
}

func (r *TodoRepository) Delete(ctx context.Context, db utils.DBTX, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.ErrTodoNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*Todo, error) {
	var t Todo
	var description sql.NullString
	var priority string
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.OwnerUsername,
		&t.Title,
		&description,
		&t.Completed,
		&priority,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		t.Description = &description.String
	}
	t.Priority = Priority(priority)
	return &t, nil
}

type ActivityRepository struct{}

type ActivityRepositoryInterface interface {
	Insert(ctx context.Context, db utils.DBTX, activity *Activity) (bool, error)
	ListByTodo(ctx context.Context, db utils.DBTX, todoID int64) ([]*Activity, error)
}

func NewActivityRepository() ActivityRepositoryInterface {
	return &ActivityRepository{}
}

// Insert stores the activity once per event id. It reports false when the
// event was already recorded, which happens on redelivery.
func (r *ActivityRepository) Insert(ctx context.Context, db utils.DBTX, activity *Activity) (bool, error) {
	query := `
		INSERT INTO todo_activity (event_id, todo_id, user_id, event_type, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id
	`

	err := db.QueryRowContext(
		ctx,
		query,
		activity.EventID,
		activity.TodoID,
		activity.UserID,
		string(activity.EventType),
		activity.OccurredAt,
	).Scan(&activity.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert activity: %w", err)
	}
	return true, nil
}

func (r *ActivityRepository) ListByTodo(ctx context.Context, db utils.DBTX, todoID int64) ([]*Activity, error) {
	query := `
		SELECT id, event_id, todo_id, user_id, event_type, occurred_at
		FROM todo_activity
		WHERE todo_id = $1
		ORDER BY occurred_at, id
	`

	rows, err := db.QueryContext(ctx, query, todoID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	activities := []*Activity{}
	for rows.Next() {
		var a Activity
		var eventType string
		if err := rows.Scan(&a.ID, &a.EventID, &a.TodoID, &a.UserID, &eventType, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.EventType = EventType(eventType)
		activities = append(activities, &a)
	}

	return activities, rows.Err()
}
