package todo

import (
	"context"
	"encoding/json"
	"time"
	"todo_tracker/internal/apperror"
	"todo_tracker/internal/cache"
	"todo_tracker/internal/observability"
	"todo_tracker/internal/user"
	"todo_tracker/internal/utils"

	"github.com/sirupsen/logrus"
)

// Cache is the read-through store for single todos. *cache.TodoCache
// satisfies it. A reader takes a lease with Reserve before reading the
// store, and Fill writes only while that lease survives. Delete drops both
// the value and the lease.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Reserve(ctx context.Context, key string) (string, error)
	Fill(ctx context.Context, key, token string, data interface{}) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// EventPublisher delivers lifecycle events. *queue.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, queueName string, payload interface{}) error
}

type TodoServiceInterface interface {
	Create(ctx context.Context, username string, in CreateInput) (*Todo, error)
	List(ctx context.Context, username string, filter ListFilter) (*Page, error)
	GetByID(ctx context.Context, username string, id int64) (*Todo, error)
	Update(ctx context.Context, username string, id int64, in UpdateInput) (*Todo, error)
	ToggleComplete(ctx context.Context, username string, id int64) (*Todo, error)
	Delete(ctx context.Context, username string, id int64) error
	Activity(ctx context.Context, username string, id int64) ([]*Activity, error)
}

type TodoService struct {
	repo      TodoRepositoryInterface
	activity  ActivityRepositoryInterface
	users     user.UserRepositoryInterface
	db        utils.TxRunner
	cache     Cache
	publisher EventPublisher
	queueName string
	now       func() time.Time
}

// NewTodoService wires the service. cache and publisher may be nil when
// Redis or RabbitMQ is disabled.
func NewTodoService(
	repo TodoRepositoryInterface,
	activity ActivityRepositoryInterface,
	users user.UserRepositoryInterface,
	db utils.TxRunner,
	todoCache Cache,
	publisher EventPublisher,
	queueName string,
) TodoServiceInterface {
	return &TodoService{
		repo:      repo,
		activity:  activity,
		users:     users,
		db:        db,
		cache:     todoCache,
		publisher: publisher,
		queueName: queueName,
		now:       time.Now,
	}
}

func (s *TodoService) Create(ctx context.Context, username string, in CreateInput) (todo *Todo, err error) {
	defer func() { observability.RecordTodoOperation("create", outcome(err)) }()

	owner, err := s.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}

	todo = NewTodo(owner.ID, in.Title, in.Description, in.Priority, s.clock())
	todo.OwnerUsername = owner.Username

	err = s.db.WithTransaction(ctx, func(tx utils.DBTX) error {
		_, err := s.repo.Create(ctx, tx, todo)
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"todo_id": todo.ID,
		"user_id": owner.ID,
	}).Info("Todo created")

	s.afterCommit(ctx, EventCreated, todo)
	return todo, nil
}

func (s *TodoService) List(ctx context.Context, username string, filter ListFilter) (page *Page, err error) {
	defer func() { observability.RecordTodoOperation("list", outcome(err)) }()

	owner, err := s.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if filter.Page < 0 {
		filter.Page = 0
	}
	if filter.Page > MaxPage {
		filter.Page = MaxPage
	}
	if filter.Size <= 0 {
		filter.Size = DefaultPageSize
	}
	if filter.Size > MaxPageSize {
		filter.Size = MaxPageSize
	}

	items, total, err := s.repo.List(ctx, s.db.Conn(), owner.ID, filter)
	if err != nil {
		return nil, err
	}

	return &Page{
		Items: items,
		Page:  filter.Page,
		Size:  filter.Size,
		Total: total,
	}, nil
}

// GetByID fetches the todo by id across all users, then checks ownership.
// A todo that exists under another owner yields ErrUnauthorizedAccess,
// never ErrTodoNotFound.
func (s *TodoService) GetByID(ctx context.Context, username string, id int64) (todo *Todo, err error) {
	defer func() { observability.RecordTodoOperation("get", outcome(err)) }()

	if _, err = s.resolveUser(ctx, username); err != nil {
		return nil, err
	}

	todo, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err = checkOwner(todo, username); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *TodoService) Update(ctx context.Context, username string, id int64, in UpdateInput) (todo *Todo, err error) {
	defer func() { observability.RecordTodoOperation("update", outcome(err)) }()

	todo, err = s.mutate(ctx, username, id, func(tx utils.DBTX, t *Todo) error {
		t.Title = in.Title
		if in.Description != nil {
			description := *in.Description
			t.Description = &description
		}
		if in.Priority != nil {
			t.Priority = *in.Priority
		}
		s.touch(t)
		return s.repo.Update(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, EventUpdated, todo)
	return todo, nil
}

func (s *TodoService) ToggleComplete(ctx context.Context, username string, id int64) (todo *Todo, err error) {
	defer func() { observability.RecordTodoOperation("toggle", outcome(err)) }()

	todo, err = s.mutate(ctx, username, id, func(tx utils.DBTX, t *Todo) error {
		t.Completed = !t.Completed
		s.touch(t)
		return s.repo.Update(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, EventToggled, todo)
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, username string, id int64) (err error) {
	defer func() { observability.RecordTodoOperation("delete", outcome(err)) }()

	todo, err := s.mutate(ctx, username, id, func(tx utils.DBTX, t *Todo) error {
		return s.repo.Delete(ctx, tx, t.ID)
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"todo_id": todo.ID,
		"user_id": todo.UserID,
	}).Info("Todo deleted")

	s.afterCommit(ctx, EventDeleted, todo)
	return nil
}

// Activity lists the recorded events of a todo the caller owns.
func (s *TodoService) Activity(ctx context.Context, username string, id int64) (activities []*Activity, err error) {
	defer func() { observability.RecordTodoOperation("activity", outcome(err)) }()

	if _, err = s.resolveUser(ctx, username); err != nil {
		return nil, err
	}

	todo, err := s.repo.GetByID(ctx, s.db.Conn(), id)
	if err != nil {
		return nil, err
	}
	if err = checkOwner(todo, username); err != nil {
		return nil, err
	}

	return s.activity.ListByTodo(ctx, s.db.Conn(), todo.ID)
}

func (s *TodoService) resolveUser(ctx context.Context, username string) (*user.User, error) {
	return s.users.GetByUsername(ctx, s.db.Conn(), username)
}

// mutate runs apply inside one transaction on the locked row, after the
// existence and ownership checks.
func (s *TodoService) mutate(ctx context.Context, username string, id int64, apply func(tx utils.DBTX, t *Todo) error) (*Todo, error) {
	if _, err := s.resolveUser(ctx, username); err != nil {
		return nil, err
	}

	var result *Todo
	err := s.db.WithTransaction(ctx, func(tx utils.DBTX) error {
		current, err := s.repo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkOwner(current, username); err != nil {
			return err
		}
		if err := apply(tx, current); err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkOwner(t *Todo, username string) error {
	if t.OwnerUsername != username {
		logrus.WithFields(logrus.Fields{
			"todo_id":  t.ID,
			"username": username,
		}).Warn("Rejected access to todo owned by another user")
		return apperror.ErrUnauthorizedAccess
	}
	return nil
}

// load reads a todo through the cache. Cache failures fall back to the store.
// The lease is taken before the store read so that a mutation committing in
// between discards the fill instead of caching the old row.
func (s *TodoService) load(ctx context.Context, id int64) (*Todo, error) {
	key := cache.TodoKey(id)
	var token string

	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		if err != nil {
			logrus.WithError(err).WithField("todo_id", id).Warn("Failed to read todo from cache")
		}
		if err == nil && data != nil {
			var cached Todo
			if json.Unmarshal(data, &cached) == nil {
				observability.RecordCacheLookup("todo", true)
				return &cached, nil
			}
		}
		observability.RecordCacheLookup("todo", false)

		token, err = s.cache.Reserve(ctx, key)
		if err != nil {
			logrus.WithError(err).WithField("todo_id", id).Warn("Failed to reserve cache fill for todo")
		}
	}

	todo, err := s.repo.GetByID(ctx, s.db.Conn(), id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && token != "" {
		if _, err := s.cache.Fill(ctx, key, token, todo); err != nil {
			logrus.WithError(err).WithField("todo_id", id).Warn("Failed to set cache for todo")
		}
	}
	return todo, nil
}

// afterCommit evicts the cached copy and publishes the event. The mutation
// is already durable, so failures here are logged and counted only.
func (s *TodoService) afterCommit(ctx context.Context, eventType EventType, t *Todo) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.TodoKey(t.ID)); err != nil {
			logrus.WithError(err).WithField("todo_id", t.ID).Warn("Failed to evict todo from cache")
		}
	}

	if s.publisher == nil {
		return
	}

	event := NewEvent(eventType, t, s.clock())
	if err := s.publisher.Publish(ctx, s.queueName, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"todo_id":    t.ID,
			"event_type": eventType,
		}).Error("Failed to publish todo event")
	}
}

// clock returns the current time at the precision Postgres stores.
func (s *TodoService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// touch advances UpdatedAt, keeping it strictly increasing even when two
// mutations land within the same microsecond.
func (s *TodoService) touch(t *Todo) {
	now := s.clock()
	if !now.After(t.UpdatedAt) {
		now = t.UpdatedAt.Add(time.Microsecond)
	}
	t.UpdatedAt = now
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperror.IsDomain(err):
		return "rejected"
	default:
		return "error"
	}
}
