package api

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/taskpass/server/internal/models"
)

type exportDocument struct {
	Version    string             `json:"version"`
	ExportDate time.Time          `json:"export_date"`
	UserID     int64              `json:"user_id"`
	Todos      []models.Todo      `json:"todos"`
	Tags       []models.Tag       `json:"tags"`
	TodoTags   []exportAssignment `json:"todo_tags"`
	Subtasks   []models.Subtask   `json:"subtasks"`
}

type exportAssignment struct {
	TodoID int64 `json:"todo_id"`
	TagID  int64 `json:"tag_id"`
}

const exportVersion = "1.0"

func buildExport(userID int64, data *models.TaskData) exportDocument {
	doc := exportDocument{
		Version:    exportVersion,
		ExportDate: time.Now(),
		UserID:     userID,
		Todos:      []models.Todo{},
		Tags:       []models.Tag{},
		TodoTags:   []exportAssignment{},
		Subtasks:   []models.Subtask{},
	}
	doc.Todos = append(doc.Todos, data.Todos...)
	doc.Tags = append(doc.Tags, data.Tags...)
	for _, todo := range data.Todos {
		for _, tagID := range todo.TagIDs {
			doc.TodoTags = append(doc.TodoTags, exportAssignment{TodoID: todo.ID, TagID: tagID})
		}
		doc.Subtasks = append(doc.Subtasks, todo.Subtasks...)
	}
	return doc
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
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
	w.Header().Set("Content-Disposition", `attachment; filename="todos-export.json"`)
	writeJSON(w, http.StatusOK, buildExport(claims.Subject, data))
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
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

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="todos-export.csv"`)

	cw := csv.NewWriter(w)
	header := []string{
		"id", "title", "completed", "due_date", "priority", "is_recurring",
		"recurrence_pattern", "reminder_minutes", "tags", "created_at", "updated_at",
	}
	if err := cw.Write(header); err != nil {
		slog.Error("write csv export", "path", r.URL.Path, "error", err)
		return
	}
	for _, todo := range data.Todos {
		cw.Write(csvRow(data, &todo))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("write csv export", "path", r.URL.Path, "error", err)
	}
}

func csvRow(data *models.TaskData, todo *models.Todo) []string {
	dueDate := ""
	if todo.DueDate != nil {
		dueDate = todo.DueDate.Format(time.RFC3339)
	}
	reminder := ""
	if todo.ReminderMinutes != nil {
		reminder = strconv.Itoa(*todo.ReminderMinutes)
	}
	names := make([]string, 0, len(todo.TagIDs))
	for _, tagID := range todo.TagIDs {
		if tag := data.Tag(tagID); tag != nil {
			names = append(names, tag.Name)
		}
	}
	return []string{
		strconv.FormatInt(todo.ID, 10),
		todo.Title,
		strconv.FormatBool(todo.Completed),
		dueDate,
		string(todo.Priority),
		strconv.FormatBool(todo.IsRecurring),
		string(todo.RecurrencePattern),
		reminder,
		strings.Join(names, ","),
		todo.CreatedAt.Format(time.RFC3339),
		todo.UpdatedAt.Format(time.RFC3339),
	}
}

type importDocument struct {
	Todos    []models.Todo      `json:"todos"`
	Tags     []models.Tag       `json:"tags"`
	TodoTags []exportAssignment `json:"todo_tags"`
	Subtasks []models.Subtask   `json:"subtasks"`
}

type importSummary struct {
	Todos    int `json:"todos"`
	Tags     int `json:"tags"`
	Subtasks int `json:"subtasks"`
}

// handleImportJSON merges an exported document into the user's data. Tags
// are matched by name; everything else gets fresh ids.
func (s *Server) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var doc importDocument
	if err := decodeJSON(r, &doc); err != nil {
		writeError(w, r, err)
		return
	}
	if len(doc.Todos) == 0 && len(doc.Tags) == 0 {
		writeError(w, r, fail(kindInputInvalid, "Nothing to import"))
		return
	}

	var summary importSummary
	_, err = s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		summary = mergeImport(d, &doc)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "imported": summary})
}

func mergeImport(d *models.TaskData, doc *importDocument) importSummary {
	var summary importSummary
	now := time.Now()

	// Old tag id -> id in this document.
	tagIDs := make(map[int64]int64, len(doc.Tags))
	for _, tag := range doc.Tags {
		if existing := tagByName(d, tag.Name); existing != nil {
			tagIDs[tag.ID] = existing.ID
			continue
		}
		d.NextTagID++
		merged := models.Tag{ID: d.NextTagID, Name: tag.Name, Color: tag.Color, CreatedAt: now}
		if !tagColorPattern.MatchString(merged.Color) {
			merged.Color = defaultTagColor
		}
		d.Tags = append(d.Tags, merged)
		tagIDs[tag.ID] = merged.ID
		summary.Tags++
	}

	assignments := make(map[int64][]int64)
	for _, link := range doc.TodoTags {
		if newID, ok := tagIDs[link.TagID]; ok {
			assignments[link.TodoID] = append(assignments[link.TodoID], newID)
		}
	}
	subtasks := make(map[int64][]models.Subtask)
	for _, subtask := range doc.Subtasks {
		subtasks[subtask.TodoID] = append(subtasks[subtask.TodoID], subtask)
	}

	for _, src := range doc.Todos {
		title := strings.TrimSpace(src.Title)
		if title == "" {
			continue
		}
		d.NextTodoID++
		todo := models.Todo{
			ID:              d.NextTodoID,
			Title:           title,
			Completed:       src.Completed,
			DueDate:         src.DueDate,
			IsRecurring:     src.IsRecurring,
			ReminderMinutes: src.ReminderMinutes,
			Subtasks:        []models.Subtask{},
			TagIDs:          []int64{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		todo.Priority = src.Priority
		if !todo.Priority.Valid() {
			todo.Priority = models.PriorityMedium
		}
		if todo.IsRecurring && src.RecurrencePattern.Valid() {
			todo.RecurrencePattern = src.RecurrencePattern
		} else {
			todo.IsRecurring = false
		}
		if ids, ok := assignments[src.ID]; ok {
			todo.TagIDs = ids
		}
		// Inline subtasks win over the flat list when both are present.
		imported := src.Subtasks
		if len(imported) == 0 {
			imported = subtasks[src.ID]
		}
		for i, subtask := range imported {
			if subtaskTitle := strings.TrimSpace(subtask.Title); subtaskTitle != "" {
				d.NextSubtaskID++
				todo.Subtasks = append(todo.Subtasks, models.Subtask{
					ID:        d.NextSubtaskID,
					TodoID:    todo.ID,
					Title:     subtaskTitle,
					Completed: subtask.Completed,
					Position:  i,
					CreatedAt: now,
				})
				summary.Subtasks++
			}
		}
		d.Todos = append(d.Todos, todo)
		summary.Todos++
	}
	return summary
}

func tagByName(d *models.TaskData, name string) *models.Tag {
	for i := range d.Tags {
		if strings.EqualFold(d.Tags[i].Name, name) {
			return &d.Tags[i]
		}
	}
	return nil
}
