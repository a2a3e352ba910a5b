package worker

import (
	"context"
	"errors"
	"fmt"
	"todo_tracker/internal/cache"
	"todo_tracker/internal/todo"
	"todo_tracker/internal/utils"

	"github.com/sirupsen/logrus"
)

// ErrInvalidEvent marks messages that can never succeed and must not be retried.
var ErrInvalidEvent = errors.New("invalid todo event")

// Processor applies a todo event: it records the activity row and evicts the
// cached todo.
type Processor struct {
	activity todo.ActivityRepositoryInterface
	db       utils.TxRunner
	cache    todo.Cache
}

func NewProcessor(activity todo.ActivityRepositoryInterface, db utils.TxRunner, todoCache todo.Cache) *Processor {
	return &Processor{
		activity: activity,
		db:       db,
		cache:    todoCache,
	}
}

func (p *Processor) Handle(ctx context.Context, event todo.Event, workerID int) error {
	if event.ID == "" || event.TodoID == 0 || !event.Type.Valid() {
		return fmt.Errorf("%w: id=%q type=%q todo=%d", ErrInvalidEvent, event.ID, event.Type, event.TodoID)
	}

	var inserted bool
	err := p.db.WithTransaction(ctx, func(tx utils.DBTX) error {
		var err error
		inserted, err = p.activity.Insert(ctx, tx, event.Activity())
		return err
	})
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}

	fields := logrus.Fields{
		"worker_id":  workerID,
		"event_id":   event.ID,
		"event_type": event.Type,
		"todo_id":    event.TodoID,
	}
	if !inserted {
		logrus.WithFields(fields).Info("Event already recorded, skipping")
	} else {
		logrus.WithFields(fields).Info("Recorded todo activity")
	}

	if p.cache != nil {
		if err := p.cache.Delete(ctx, cache.TodoKey(event.TodoID)); err != nil {
			return fmt.Errorf("evict todo cache: %w", err)
		}
	}
	return nil
}
