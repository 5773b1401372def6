package task

import (
	"strings"
	"time"
)

// DefaultPageSize is the task list page size.
const DefaultPageSize = 10

type StatusFilter string

const (
	FilterAll       StatusFilter = ""
	FilterActive    StatusFilter = "active"
	FilterCompleted StatusFilter = "completed"
)

// ListFilter narrows an owner's task list. Zero values mean "no filter".
type ListFilter struct {
	Status   StatusFilter
	Priority Priority
	Search   string
	Sort     Sort
	Page     int
	PageSize int
}

// NewListFilter builds a filter from raw query values. Values that are not
// recognized are dropped rather than rejected. The search text is kept
// verbatim, surrounding spaces included.
func NewListFilter(status, priority, search, sort string) ListFilter {
	f := ListFilter{
		Search:   search,
		Sort:     ParseSort(sort),
		Page:     1,
		PageSize: DefaultPageSize,
	}
	switch StatusFilter(status) {
	case FilterActive, FilterCompleted:
		f.Status = StatusFilter(status)
	}
	if p := Priority(priority); p.Valid() {
		f.Priority = p
	}
	return f
}

// Matches reports whether t passes the status, priority and search filters.
// Stores that cannot push a filter down to the database use it directly.
func (f ListFilter) Matches(t *Task) bool {
	switch f.Status {
	case FilterActive:
		if t.IsCompleted() {
			return false
		}
	case FilterCompleted:
		if !t.IsCompleted() {
			return false
		}
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

func (f ListFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

func (f ListFilter) Limit() int {
	if f.PageSize < 1 {
		return DefaultPageSize
	}
	return f.PageSize
}

// Sortable task fields mapped to their column names.
var sortColumns = map[string]string{
	"id":           "id",
	"title":        "title",
	"description":  "description",
	"priority":     "priority",
	"status":       "status",
	"due_date":     "due_date",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"completed_at": "completed_at",
}

type Sort struct {
	Field string
	Desc  bool
}

var DefaultSort = Sort{Field: "created_at", Desc: true}

// ParseSort reads "field" or "-field". Unknown fields give DefaultSort.
func ParseSort(raw string) Sort {
	raw = strings.TrimSpace(raw)
	desc := strings.HasPrefix(raw, "-")
	field := strings.TrimPrefix(raw, "-")
	if _, ok := sortColumns[field]; !ok {
		return DefaultSort
	}
	return Sort{Field: field, Desc: desc}
}

func (s Sort) Column() string {
	if col, ok := sortColumns[s.Field]; ok {
		return col
	}
	return sortColumns[DefaultSort.Field]
}

func (s Sort) String() string {
	if s.Field == "" {
		return DefaultSort.String()
	}
	if s.Desc {
		return "-" + s.Field
	}
	return s.Field
}

// Less orders a before b under s, breaking ties by descending id.
func (s Sort) Less(a, b *Task) bool {
	c := compareField(s.Field, a, b)
	if c == 0 {
		return a.ID > b.ID
	}
	if s.Desc {
		return c > 0
	}
	return c < 0
}

func compareField(field string, a, b *Task) int {
	switch field {
	case "id":
		return compareInt(a.ID, b.ID)
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "description":
		return strings.Compare(a.Description, b.Description)
	case "priority":
		return strings.Compare(string(a.Priority), string(b.Priority))
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "due_date":
		return compareTimePtr(a.DueDate, b.DueDate)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "completed_at":
		return compareTimePtr(a.CompletedAt, b.CompletedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareTimePtr sorts nil after every set value, matching Postgres NULLS LAST
// for ascending order.
func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

// Stats are counted over all of an owner's tasks, ignoring any list filter.
type Stats struct {
	Total        int
	Active       int
	Completed    int
	Pending      int
	InProgress   int
	HighPriority int
	Overdue      int
}

// Add counts t into s, using now for the overdue check.
func (s *Stats) Add(t *Task, now time.Time) {
	s.Total++
	switch t.Status {
	case StatusCompleted:
		s.Completed++
	case StatusPending:
		s.Pending++
	case StatusInProgress:
		s.InProgress++
	}
	if !t.IsCompleted() {
		s.Active++
	}
	if t.Priority == PriorityHigh {
		s.HighPriority++
	}
	if t.IsOverdueOn(now) {
		s.Overdue++
	}
}
