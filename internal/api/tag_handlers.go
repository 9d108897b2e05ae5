package api

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/taskpass/server/internal/models"
)

const defaultTagColor = "#3B82F6"

var tagColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func validateTagRequest(req *tagRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return fail(kindInputInvalid, "Tag name is required")
	}
	if len(req.Name) > 50 {
		return fail(kindInputInvalid, "Tag name must be 50 characters or less")
	}
	if req.Color == "" {
		req.Color = defaultTagColor
	}
	if !tagColorPattern.MatchString(req.Color) {
		return fail(kindInputInvalid, "Tag color must be a #RRGGBB hex value")
	}
	req.Color = strings.ToUpper(req.Color)
	return nil
}

func tagNameTaken(d *models.TaskData, name string, exclude int64) bool {
	for _, tag := range d.Tags {
		if tag.ID != exclude && strings.EqualFold(tag.Name, name) {
			return true
		}
	}
	return false
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
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
	tags := data.Tags
	if tags == nil {
		tags = []models.Tag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req tagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateTagRequest(&req); err != nil {
		writeError(w, r, err)
		return
	}

	var created models.Tag
	_, err = s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		if tagNameTaken(d, req.Name, 0) {
			return fail(kindInputInvalid, "Tag name already exists")
		}
		d.NextTagID++
		created = models.Tag{
			ID:        d.NextTagID,
			Name:      req.Name,
			Color:     req.Color,
			CreatedAt: time.Now(),
		}
		d.Tags = append(d.Tags, created)
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
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
	var req tagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateTagRequest(&req); err != nil {
		writeError(w, r, err)
		return
	}

	var updated models.Tag
	_, err = s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		tag := d.Tag(id)
		if tag == nil {
			return fail(kindNotFound, "Tag not found")
		}
		if tagNameTaken(d, req.Name, id) {
			return fail(kindInputInvalid, "Tag name already exists")
		}
		tag.Name = req.Name
		tag.Color = req.Color
		updated = *tag
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteTag removes a tag and detaches it from every todo.
func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
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
		found := false
		for i := range d.Tags {
			if d.Tags[i].ID == id {
				d.Tags = append(d.Tags[:i], d.Tags[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return fail(kindNotFound, "Tag not found")
		}
		for i := range d.Todos {
			todo := &d.Todos[i]
			kept := todo.TagIDs[:0]
			for _, tagID := range todo.TagIDs {
				if tagID != id {
					kept = append(kept, tagID)
				}
			}
			todo.TagIDs = kept
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type assignTagsRequest struct {
	TagIDs []int64 `json:"tag_ids"`
}

// handleAssignTags replaces a todo's tag assignments wholesale.
func (s *Server) handleAssignTags(w http.ResponseWriter, r *http.Request) {
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
	var req assignTagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var updated models.Todo
	data, err := s.store.MutateTasks(r.Context(), claims.Subject, func(d *models.TaskData) error {
		todo := d.Todo(id)
		if todo == nil {
			return fail(kindNotFound, "Todo not found")
		}
		assigned := make([]int64, 0, len(req.TagIDs))
		seen := make(map[int64]bool, len(req.TagIDs))
		for _, tagID := range req.TagIDs {
			if seen[tagID] {
				continue
			}
			if d.Tag(tagID) == nil {
				return fail(kindInputInvalid, "Unknown tag id")
			}
			seen[tagID] = true
			assigned = append(assigned, tagID)
		}
		todo.TagIDs = assigned
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
