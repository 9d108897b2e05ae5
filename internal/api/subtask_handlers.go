package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/taskpass/server/internal/models"
)

type subtaskRequest struct {
	Title     string `json:"title"`
	Completed *bool  `json:"completed"`
	Position  *int   `json:"position"`
}

func (s *Server) handleListSubtasks(w http.ResponseWriter, r *http.Request) {
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
	subtasks := append([]models.Subtask{}, todo.Subtasks...)
	sort.SliceStable(subtasks, func(i, j int) bool {
		return subtasks[i].Position < subtasks[j].Position
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"subtasks": subtasks,
		"progress": todo.Progress(),
	})
}

func (s *Server) handleCreateSubtask(w http.ResponseWriter, r *http.Request) {
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
	var req subtaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, r, fail(kindInputInvalid, "Title is required"))
		return
	}

	var created models.Subtask
	_, err = s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		todo := d.Todo(id)
		if todo == nil {
			return fail(kindNotFound, "Todo not found")
		}
		d.NextSubtaskID++
		position := len(todo.Subtasks)
		if req.Position != nil && *req.Position >= 0 {
			position = *req.Position
		}
		created = models.Subtask{
			ID:        d.NextSubtaskID,
			TodoID:    todo.ID,
			Title:     req.Title,
			Position:  position,
			CreatedAt: time.Now(),
		}
		todo.Subtasks = append(todo.Subtasks, created)
		todo.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// findSubtask locates a subtask by id across all of a user's todos.
func findSubtask(d *models.TaskData, id int64) (*models.Todo, *models.Subtask) {
	for i := range d.Todos {
		todo := &d.Todos[i]
		for j := range todo.Subtasks {
			if todo.Subtasks[j].ID == id {
				return todo, &todo.Subtasks[j]
			}
		}
	}
	return nil, nil
}

func (s *Server) handleUpdateSubtask(w http.ResponseWriter, r *http.Request) {
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
	var req subtaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var updated models.Subtask
	_, err = s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		todo, subtask := findSubtask(d, id)
		if subtask == nil {
			return fail(kindNotFound, "Subtask not found")
		}
		if title := strings.TrimSpace(req.Title); title != "" {
			subtask.Title = title
		}
		if req.Completed != nil {
			subtask.Completed = *req.Completed
		}
		if req.Position != nil && *req.Position >= 0 {
			subtask.Position = *req.Position
		}
		todo.UpdatedAt = time.Now()
		updated = *subtask
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSubtask(w http.ResponseWriter, r *http.Request) {
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
			todo := &d.Todos[i]
			for j := range todo.Subtasks {
				if todo.Subtasks[j].ID == id {
					todo.Subtasks = append(todo.Subtasks[:j], todo.Subtasks[j+1:]...)
					todo.UpdatedAt = time.Now()
					return nil
				}
			}
		}
		return fail(kindNotFound, "Subtask not found")
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
