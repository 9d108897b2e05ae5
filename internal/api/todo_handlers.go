package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/taskpass/server/internal/models"
)

// todoView is a todo decorated with derived subtask progress and the
// resolved tag objects for its tag ids.
type todoView struct {
	models.Todo
	SubtaskProgress models.SubtaskProgress `json:"subtask_progress"`
	Tags            []models.Tag           `json:"tags"`
}

func newTodoView(data *models.TaskData, todo models.Todo) todoView {
	view := todoView{Todo: todo, SubtaskProgress: todo.Progress(), Tags: []models.Tag{}}
	for _, id := range todo.TagIDs {
		if tag := data.Tag(id); tag != nil {
			view.Tags = append(view.Tags, *tag)
		}
	}
	return view
}

type todoRequest struct {
	Title             string                   `json:"title"`
	Completed         *bool                    `json:"completed"`
	DueDate           *time.Time               `json:"due_date"`
	Priority          models.Priority          `json:"priority"`
	IsRecurring       *bool                    `json:"is_recurring"`
	RecurrencePattern models.RecurrencePattern `json:"recurrence_pattern"`
	ReminderMinutes   *int                     `json:"reminder_minutes"`
}

// pathID parses the {id} path segment of the current route.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fail(kindInputInvalid, "Invalid id")
	}
	return id, nil
}

// validateTodoRequest checks the fields common to create and update. On
// create the recurrence fields must be complete in the request itself; on
// update they are merged with the stored todo first, so the final state is
// checked inside the mutation instead.
func validateTodoRequest(req *todoRequest, create bool) error {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return fail(kindInputInvalid, "Title is required")
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		return fail(kindInputInvalid, "Priority must be high, medium, or low")
	}
	if create {
		if req.DueDate != nil && req.DueDate.Before(time.Now().Add(time.Minute)) {
			return fail(kindInputInvalid, "Due date must be in the future")
		}
		if req.IsRecurring != nil && *req.IsRecurring {
			if req.DueDate == nil {
				return fail(kindInputInvalid, "Recurring todos require a due date")
			}
			if !req.RecurrencePattern.Valid() {
				return fail(kindInputInvalid, "Recurrence pattern must be daily, weekly, monthly, or yearly")
			}
		}
	}
	if req.ReminderMinutes != nil && *req.ReminderMinutes <= 0 {
		return fail(kindInputInvalid, "Reminder minutes must be positive")
	}
	return nil
}

// sortTodos orders by priority (high first), then due date (soonest first,
// undated last), then newest created.
func sortTodos(todos []models.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		a, b := &todos[i], &todos[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		switch {
		case a.DueDate == nil && b.DueDate == nil:
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.store.TaskData(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, r, err)
		return
	}

	todos := data.Todos
	if raw := r.URL.Query().Get("tag_id"); raw != "" {
		tagID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, fail(kindInputInvalid, "Invalid tag_id"))
			return
		}
		filtered := make([]models.Todo, 0, len(todos))
		for _, todo := range todos {
			for _, id := range todo.TagIDs {
				if id == tagID {
					filtered = append(filtered, todo)
					break
				}
			}
		}
		todos = filtered
	}

	sortTodos(todos)

	now := time.Now()
	views := make([]todoView, 0, len(todos))
	overdue, pending, completed := 0, 0, 0
	for _, todo := range todos {
		switch {
		case todo.Completed:
			completed++
		case todo.Overdue(now):
			overdue++
		default:
			pending++
		}
		views = append(views, newTodoView(data, todo))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"todos":     views,
		"overdue":   overdue,
		"pending":   pending,
		"completed": completed,
	})
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req todoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateTodoRequest(&req, true); err != nil {
		writeError(w, r, err)
		return
	}

	var created models.Todo
	data, err := s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		d.NextTodoID++
		now := time.Now()
		todo := models.Todo{
			ID:              d.NextTodoID,
			Title:           req.Title,
			DueDate:         req.DueDate,
			Priority:        req.Priority,
			IsRecurring:     req.IsRecurring != nil && *req.IsRecurring,
			ReminderMinutes: req.ReminderMinutes,
			Subtasks:        []models.Subtask{},
			TagIDs:          []int64{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if todo.IsRecurring {
			todo.RecurrencePattern = req.RecurrencePattern
		}
		d.Todos = append(d.Todos, todo)
		created = todo
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTodoView(data, created))
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.store.TaskData(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	todo := data.Todo(id)
	if todo == nil {
		writeError(w, r, fail(kindNotFound, "Todo not found"))
		return
	}
	writeJSON(w, http.StatusOK, newTodoView(data, *todo))
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req todoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateTodoRequest(&req, false); err != nil {
		writeError(w, r, err)
		return
	}

	var updated models.Todo
	data, err := s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		todo := d.Todo(id)
		if todo == nil {
			return fail(kindNotFound, "Todo not found")
		}
		todo.Title = req.Title
		todo.Priority = req.Priority
		if req.DueDate != nil {
			todo.DueDate = req.DueDate
		}
		if req.ReminderMinutes != nil {
			todo.ReminderMinutes = req.ReminderMinutes
		}
		if req.IsRecurring != nil {
			todo.IsRecurring = *req.IsRecurring
		}
		if todo.IsRecurring {
			if req.RecurrencePattern != "" {
				todo.RecurrencePattern = req.RecurrencePattern
			}
			if !todo.RecurrencePattern.Valid() {
				return fail(kindInputInvalid, "Recurrence pattern must be daily, weekly, monthly, or yearly")
			}
			if todo.DueDate == nil {
				return fail(kindInputInvalid, "Recurring todos require a due date")
			}
		} else {
			todo.RecurrencePattern = ""
		}
		if req.Completed != nil {
			completeTodo(todo, *req.Completed)
		}
		todo.UpdatedAt = time.Now()
		updated = *todo
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTodoView(data, updated))
}

// completeTodo applies a completion toggle. Completing a recurring todo does
// not mark it done: the due date rolls forward one interval and the reminder
// marker resets so the next occurrence can notify again.
func completeTodo(todo *models.Todo, completed bool) {
	if !completed {
		todo.Completed = false
		return
	}
	if todo.IsRecurring && todo.RecurrencePattern.Valid() && todo.DueDate != nil {
		next := todo.RecurrencePattern.Next(*todo.DueDate)
		todo.DueDate = &next
		todo.LastNotificationSent = nil
		for i := range todo.Subtasks {
			todo.Subtasks[i].Completed = false
		}
		return
	}
	todo.Completed = true
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, err = s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		for i := range d.Todos {
			if d.Todos[i].ID == id {
				d.Todos = append(d.Todos[:i], d.Todos[i+1:]...)
				return nil
			}
		}
		return fail(kindNotFound, "Todo not found")
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
