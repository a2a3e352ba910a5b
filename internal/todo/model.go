package todo

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"

	DefaultPriority = PriorityMedium
)

// ParsePriority accepts any letter case.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Todo is a single item owned by exactly one user. The owner is loaded
// together with the row, so OwnerUsername is always populated by the store.
type Todo struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	OwnerUsername string    `json:"owner_username"`
	Title         string    `json:"title"`
	Description   *string   `json:"description,omitempty"`
	Completed     bool      `json:"completed"`
	Priority      Priority  `json:"priority"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewTodo builds an unsaved todo with the defaults applied: not completed,
// MEDIUM priority when none is given, both timestamps set to now.
func NewTodo(userID int64, title string, description *string, priority *Priority, now time.Time) *Todo {
	p := DefaultPriority
	if priority != nil {
		p = *priority
	}

	return &Todo{
		UserID:      userID,
		Title:       title,
		Description: description,
		Completed:   false,
		Priority:    p,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

type CreateInput struct {
	Title       string
	Description *string
	Priority    *Priority
}

// UpdateInput overwrites Title. Description and Priority are only applied
// when non-nil; a pointer to "" clears the description.
type UpdateInput struct {
	Title       string
	Description *string
	Priority    *Priority
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps Page*Size far from int overflow.
	MaxPage = 1_000_000
)

type ListFilter struct {
	Completed *bool
	Priority  *Priority
	Page      int
	Size      int
}

func (f ListFilter) Offset() int {
	return f.Page * f.Size
}

type Page struct {
	Items []*Todo
	Page  int
	Size  int
	Total int64
}

func (p *Page) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// Activity is one recorded lifecycle event of a todo.
type Activity struct {
	ID         int64
	EventID    string
	TodoID     int64
	UserID     int64
	EventType  EventType
	OccurredAt time.Time
}
