package models

import "time"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities for list sorting, high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

type RecurrencePattern string

const (
	RecurDaily   RecurrencePattern = "daily"
	RecurWeekly  RecurrencePattern = "weekly"
	RecurMonthly RecurrencePattern = "monthly"
	RecurYearly  RecurrencePattern = "yearly"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		return true
	}
	return false
}

// Next advances a due date by one recurrence interval.
func (p RecurrencePattern) Next(t time.Time) time.Time {
	switch p {
	case RecurDaily:
		return t.AddDate(0, 0, 1)
	case RecurWeekly:
		return t.AddDate(0, 0, 7)
	case RecurMonthly:
		return t.AddDate(0, 1, 0)
	case RecurYearly:
		return t.AddDate(1, 0, 0)
	}
	return t
}

type Todo struct {
	ID                   int64             `json:"id"`
	Title                string            `json:"title"`
	Completed            bool              `json:"completed"`
	DueDate              *time.Time        `json:"due_date"`
	Priority             Priority          `json:"priority"`
	IsRecurring          bool              `json:"is_recurring"`
	RecurrencePattern    RecurrencePattern `json:"recurrence_pattern,omitempty"`
	ReminderMinutes      *int              `json:"reminder_minutes"`
	LastNotificationSent *time.Time        `json:"last_notification_sent"`
	Subtasks             []Subtask         `json:"subtasks"`
	TagIDs               []int64           `json:"tag_ids"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

type Subtask struct {
	ID        int64     `json:"id"`
	TodoID    int64     `json:"todo_id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type SubtaskProgress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Progress summarizes subtask completion for display.
func (t *Todo) Progress() SubtaskProgress {
	total := len(t.Subtasks)
	done := 0
	for _, s := range t.Subtasks {
		if s.Completed {
			done++
		}
	}
	pct := 0
	if total > 0 {
		pct = int(float64(done)/float64(total)*100 + 0.5)
	}
	return SubtaskProgress{Completed: done, Total: total, Percentage: pct}
}

// Overdue reports whether an incomplete todo's due date has passed.
func (t *Todo) Overdue(now time.Time) bool {
	return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
}

type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

type Template struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	Category          string            `json:"category,omitempty"`
	TitleTemplate     string            `json:"title_template"`
	Priority          Priority          `json:"priority"`
	IsRecurring       bool              `json:"is_recurring"`
	RecurrencePattern RecurrencePattern `json:"recurrence_pattern,omitempty"`
	ReminderMinutes   *int              `json:"reminder_minutes"`
	Subtasks          []string          `json:"subtasks,omitempty"`
	DueDateOffsetDays *int              `json:"due_date_offset_days"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type Holiday struct {
	Date string `json:"date" yaml:"date"`
	Name string `json:"name" yaml:"name"`
}

// TaskData is the per-user task document: all todos (with embedded subtasks
// and tag assignments), tags, and templates, plus the id sequences for each.
type TaskData struct {
	NextTodoID     int64      `json:"next_todo_id"`
	NextSubtaskID  int64      `json:"next_subtask_id"`
	NextTagID      int64      `json:"next_tag_id"`
	NextTemplateID int64      `json:"next_template_id"`
	Todos          []Todo     `json:"todos"`
	Tags           []Tag      `json:"tags"`
	Templates      []Template `json:"templates"`
}

// Todo returns a pointer into the document's todo slice, or nil.
func (d *TaskData) Todo(id int64) *Todo {
	for i := range d.Todos {
		if d.Todos[i].ID == id {
			return &d.Todos[i]
		}
	}
	return nil
}

// Tag returns a pointer into the document's tag slice, or nil.
func (d *TaskData) Tag(id int64) *Tag {
	for i := range d.Tags {
		if d.Tags[i].ID == id {
			return &d.Tags[i]
		}
	}
	return nil
}

// Template returns a pointer into the document's template slice, or nil.
func (d *TaskData) Template(id int64) *Template {
	for i := range d.Templates {
		if d.Templates[i].ID == id {
			return &d.Templates[i]
		}
	}
	return nil
}
