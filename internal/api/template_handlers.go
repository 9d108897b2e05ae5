package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/taskpass/server/internal/models"
)

type templateRequest struct {
	Name              string                   `json:"name"`
	Description       string                   `json:"description"`
	Category          string                   `json:"category"`
	TitleTemplate     string                   `json:"title_template"`
	Priority          models.Priority          `json:"priority"`
	IsRecurring       bool                     `json:"is_recurring"`
	RecurrencePattern models.RecurrencePattern `json:"recurrence_pattern"`
	ReminderMinutes   *int                     `json:"reminder_minutes"`
	Subtasks          []string                 `json:"subtasks"`
	DueDateOffsetDays *int                     `json:"due_date_offset_days"`
}

func validateTemplateRequest(req *templateRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.TitleTemplate = strings.TrimSpace(req.TitleTemplate)
	if req.Name == "" {
		return fail(kindInputInvalid, "Template name is required")
	}
	if req.TitleTemplate == "" {
		return fail(kindInputInvalid, "Title template is required")
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !req.Priority.Valid() {
		return fail(kindInputInvalid, "Priority must be high, medium, or low")
	}
	if req.IsRecurring && !req.RecurrencePattern.Valid() {
		return fail(kindInputInvalid, "Recurrence pattern must be daily, weekly, monthly, or yearly")
	}
	if req.ReminderMinutes != nil && *req.ReminderMinutes <= 0 {
		return fail(kindInputInvalid, "Reminder minutes must be positive")
	}
	cleaned := make([]string, 0, len(req.Subtasks))
	for _, title := range req.Subtasks {
		if title = strings.TrimSpace(title); title != "" {
			cleaned = append(cleaned, title)
		}
	}
	req.Subtasks = cleaned
	return nil
}

func applyTemplateRequest(tmpl *models.Template, req *templateRequest) {
	tmpl.Name = req.Name
	tmpl.Description = strings.TrimSpace(req.Description)
	tmpl.Category = strings.TrimSpace(req.Category)
	tmpl.TitleTemplate = req.TitleTemplate
	tmpl.Priority = req.Priority
	tmpl.IsRecurring = req.IsRecurring
	if req.IsRecurring {
		tmpl.RecurrencePattern = req.RecurrencePattern
	} else {
		tmpl.RecurrencePattern = ""
	}
	tmpl.ReminderMinutes = req.ReminderMinutes
	tmpl.Subtasks = req.Subtasks
	tmpl.DueDateOffsetDays = req.DueDateOffsetDays
	tmpl.UpdatedAt = time.Now()
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
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
	templates := data.Templates
	if templates == nil {
		templates = []models.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateTemplateRequest(&req); err != nil {
		writeError(w, r, err)
		return
	}

	var created models.Template
	_, err = s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		d.NextTemplateID++
		tmpl := models.Template{ID: d.NextTemplateID, CreatedAt: time.Now()}
		applyTemplateRequest(&tmpl, &req)
		d.Templates = append(d.Templates, tmpl)
		created = tmpl
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
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
	tmpl := data.Template(id)
	if tmpl == nil {
		writeError(w, r, fail(kindNotFound, "Template not found"))
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
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
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateTemplateRequest(&req); err != nil {
		writeError(w, r, err)
		return
	}

	var updated models.Template
	_, err = s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		tmpl := d.Template(id)
		if tmpl == nil {
			return fail(kindNotFound, "Template not found")
		}
		applyTemplateRequest(tmpl, &req)
		updated = *tmpl
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
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
		for i := range d.Templates {
			if d.Templates[i].ID == id {
				d.Templates = append(d.Templates[:i], d.Templates[i+1:]...)
				return nil
			}
		}
		return fail(kindNotFound, "Template not found")
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type useTemplateRequest struct {
	Title   string     `json:"title"`
	DueDate *time.Time `json:"due_date"`
	TagIDs  []int64    `json:"tag_ids"`
}

// handleUseTemplate instantiates a todo from a template. An explicit due
// date wins over the template's offset days; the offset counts from now.
func (s *Server) handleUseTemplate(w http.ResponseWriter, r *http.Request) {
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
	var req useTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var created models.Todo
	data, err := s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		tmpl := d.Template(id)
		if tmpl == nil {
			return fail(kindNotFound, "Template not found")
		}

		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = tmpl.TitleTemplate
		}
		now := time.Now()
		dueDate := req.DueDate
		if dueDate == nil && tmpl.DueDateOffsetDays != nil {
			due := now.AddDate(0, 0, *tmpl.DueDateOffsetDays)
			dueDate = &due
		}
		if tmpl.IsRecurring && dueDate == nil {
			return fail(kindInputInvalid, "Recurring todos require a due date")
		}

		tagIDs := make([]int64, 0, len(req.TagIDs))
		for _, tagID := range req.TagIDs {
			if d.Tag(tagID) == nil {
				return fail(kindInputInvalid, "Unknown tag id")
			}
			tagIDs = append(tagIDs, tagID)
		}

		d.NextTodoID++
		todo := models.Todo{
			ID:              d.NextTodoID,
			Title:           title,
			DueDate:         dueDate,
			Priority:        tmpl.Priority,
			IsRecurring:     tmpl.IsRecurring,
			ReminderMinutes: tmpl.ReminderMinutes,
			Subtasks:        []models.Subtask{},
			TagIDs:          tagIDs,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if tmpl.IsRecurring {
			todo.RecurrencePattern = tmpl.RecurrencePattern
		}
		for i, subtaskTitle := range tmpl.Subtasks {
			d.NextSubtaskID++
			todo.Subtasks = append(todo.Subtasks, models.Subtask{
				ID:        d.NextSubtaskID,
				TodoID:    todo.ID,
				Title:     subtaskTitle,
				Position:  i,
				CreatedAt: now,
			})
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
