package todo

import (
	"net/url"
	"strconv"
	"strings"
	"time"
	"todo_tracker/internal/apperror"
	"todo_tracker/internal/validation"
)

type TodoRequest struct {
	Title       string  `json:"title" validate:"notblank,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Priority    *string `json:"priority"`
}

type TodoResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type PageResponse struct {
	Items      []TodoResponse `json:"items"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"totalPages"`
}

type ActivityResponse struct {
	EventID    string    `json:"eventId"`
	EventType  EventType `json:"eventType"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ValidateTodoRequest trims the title, checks every field and returns the
// service input. An explicit empty description is kept so it can clear the
// stored one.
func ValidateTodoRequest(req *TodoRequest) (CreateInput, error) {
	req.Title = strings.TrimSpace(req.Title)

	fields := map[string]string{}
	if err := validation.Struct(req); err != nil {
		if vErr, ok := err.(*apperror.ValidationError); ok {
			for k, v := range vErr.Fields {
				fields[k] = v
			}
		} else {
			return CreateInput{}, err
		}
	}

	var priority *Priority
	if req.Priority != nil {
		p, err := ParsePriority(*req.Priority)
		if err != nil {
			fields["priority"] = "must be one of LOW MEDIUM HIGH"
		} else {
			priority = &p
		}
	}

	if len(fields) > 0 {
		return CreateInput{}, &apperror.ValidationError{Fields: fields}
	}

	return CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
	}, nil
}

type listQuery struct {
	Page int `json:"page" validate:"min=0,max=1000000"`
	Size int `json:"size" validate:"min=1,max=100"`
}

// ParseListQuery reads completed, priority, page and size from the query
// string. Missing values take their defaults: no filter, page 0, size 10.
func ParseListQuery(values url.Values) (ListFilter, error) {
	filter := ListFilter{Page: 0, Size: DefaultPageSize}
	fields := map[string]string{}

	if raw := values.Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			fields["completed"] = "must be true or false"
		} else {
			filter.Completed = &completed
		}
	}

	if raw := values.Get("priority"); raw != "" {
		p, err := ParsePriority(raw)
		if err != nil {
			fields["priority"] = "must be one of LOW MEDIUM HIGH"
		} else {
			filter.Priority = &p
		}
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			fields["page"] = "must be a number"
		} else {
			filter.Page = page
		}
	}

	if raw := values.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			fields["size"] = "must be a number"
		} else {
			filter.Size = size
		}
	}

	if err := validation.Struct(listQuery{Page: filter.Page, Size: filter.Size}); err != nil {
		if vErr, ok := err.(*apperror.ValidationError); ok {
			for k, v := range vErr.Fields {
				if _, exists := fields[k]; !exists {
					fields[k] = v
				}
			}
		}
	}

	if len(fields) > 0 {
		return ListFilter{}, &apperror.ValidationError{Fields: fields}
	}
	return filter, nil
}

func ToTodoResponse(t *Todo) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func ToPageResponse(p *Page) PageResponse {
	items := make([]TodoResponse, 0, len(p.Items))
	for _, t := range p.Items {
		items = append(items, ToTodoResponse(t))
	}

	return PageResponse{
		Items:      items,
		Page:       p.Page,
		Size:       p.Size,
		Total:      p.Total,
		TotalPages: p.TotalPages(),
	}
}

func ToActivityResponses(activities []*Activity) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(activities))
	for _, a := range activities {
		out = append(out, ActivityResponse{
			EventID:    a.EventID,
			EventType:  a.EventType,
			OccurredAt: a.OccurredAt,
		})
	}
	return out
}
