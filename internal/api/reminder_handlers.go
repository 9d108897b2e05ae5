package api

import (
	"net/http"
	"time"

	"github.com/taskpass/server/internal/models"
)

// handleCheckReminders returns incomplete todos whose reminder window has
// opened and that have not been notified for the current occurrence.
func (s *Server) handleCheckReminders(w http.ResponseWriter, r *http.Request) {
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

	now := time.Now()
	due := make([]todoView, 0)
	for _, todo := range data.Todos {
		if todo.Completed || todo.DueDate == nil || todo.ReminderMinutes == nil {
			continue
		}
		if todo.LastNotificationSent != nil {
			continue
		}
		remindAt := todo.DueDate.Add(-time.Duration(*todo.ReminderMinutes) * time.Minute)
		if remindAt.After(now) {
			continue
		}
		due = append(due, newTodoView(data, todo))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": due})
}

type ackReminderRequest struct {
	ID int64 `json:"id"`
}

// handleAckReminder stamps the notification time so a todo is not reported
// again until its due date rolls forward.
func (s *Server) handleAckReminder(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ackReminderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ID <= 0 {
		writeError(w, r, fail(kindInputInvalid, "Invalid id"))
		return
	}
	_, err = s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		todo := d.Todo(req.ID)
		if todo == nil {
			return fail(kindNotFound, "Todo not found")
		}
		now := time.Now()
		todo.LastNotificationSent = &now
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleHolidays serves the shared holiday calendar.
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := s.store.Holidays(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if holidays == nil {
		holidays = []models.Holiday{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": holidays})
}
