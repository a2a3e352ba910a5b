package todo

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCreated EventType = "todo.created"
	EventUpdated EventType = "todo.updated"
	EventToggled EventType = "todo.toggled"
	EventDeleted EventType = "todo.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventToggled, EventDeleted:
		return true
	}
	return false
}

// Event is the message published after a todo mutation commits.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	TodoID     int64     `json:"todo_id"`
	UserID     int64     `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(eventType EventType, t *Todo, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TodoID:     t.ID,
		UserID:     t.UserID,
		OccurredAt: occurredAt,
	}
}

// Activity converts the event into the row the worker stores.
func (e Event) Activity() *Activity {
	return &Activity{
		EventID:    e.ID,
		TodoID:     e.TodoID,
		UserID:     e.UserID,
		EventType:  e.Type,
		OccurredAt: e.OccurredAt,
	}
}
