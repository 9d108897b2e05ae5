package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskpass/server/internal/models"
)

func (c *testClient) createTag(body string) models.Tag {
	c.t.Helper()
	var created models.Tag
	rec := c.do(http.MethodPost, "/api/tags", body, &created)
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return created
}

func TestCreateTag(t *testing.T) {
	c, _ := newTestClient(t)

	created := c.createTag(`{"name":" work ","color":"#ff00aa"}`)
	assert.Equal(t, "work", created.Name)
	assert.Equal(t, "#FF00AA", created.Color, "color is normalized to uppercase")

	defaulted := c.createTag(`{"name":"home"}`)
	assert.Equal(t, "#3B82F6", defaulted.Color)
}

func TestCreateTagValidation(t *testing.T) {
	c, _ := newTestClient(t)

	cases := map[string]string{
		"empty name":    `{"name":"  "}`,
		"name too long": fmt.Sprintf(`{"name":%q}`, strings.Repeat("x", 51)),
		"bad color":     `{"name":"work","color":"red"}`,
		"short hex":     `{"name":"work","color":"#fff"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := c.do(http.MethodPost, "/api/tags", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateTagDuplicateName(t *testing.T) {
	c, _ := newTestClient(t)
	c.createTag(`{"name":"work"}`)

	rec := c.do(http.MethodPost, "/api/tags", `{"name":"Work"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "names are unique case-insensitively")
}

func TestUpdateTag(t *testing.T) {
	c, _ := newTestClient(t)
	created := c.createTag(`{"name":"work"}`)
	other := c.createTag(`{"name":"home"}`)

	var updated models.Tag
	rec := c.do(http.MethodPut, fmt.Sprintf("/api/tags/%d", created.ID), `{"name":"office","color":"#112233"}`, &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "office", updated.Name)
	assert.Equal(t, "#112233", updated.Color)

	// Renaming onto another tag's name conflicts.
	rec = c.do(http.MethodPut, fmt.Sprintf("/api/tags/%d", other.ID), `{"name":"office"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Keeping its own name is fine.
	rec = c.do(http.MethodPut, fmt.Sprintf("/api/tags/%d", other.ID), `{"name":"home","color":"#445566"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteTagDetachesFromTodos(t *testing.T) {
	c, _ := newTestClient(t)
	tag := c.createTag(`{"name":"work"}`)
	todo := c.createTodo(`{"title":"tagged"}`)

	rec := c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d/tags", todo.ID),
		fmt.Sprintf(`{"tag_ids":[%d]}`, tag.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/tags/%d", tag.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view todoView
	rec = c.do(http.MethodGet, fmt.Sprintf("/api/todos/%d", todo.ID), "", &view)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, view.TagIDs)
	assert.Empty(t, view.Tags)
}

func TestAssignTagsReplacesAndDeduplicates(t *testing.T) {
	c, _ := newTestClient(t)
	work := c.createTag(`{"name":"work"}`)
	home := c.createTag(`{"name":"home"}`)
	todo := c.createTodo(`{"title":"tagged"}`)

	var view todoView
	rec := c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d/tags", todo.ID),
		fmt.Sprintf(`{"tag_ids":[%d,%d,%d]}`, work.ID, work.ID, home.ID), &view)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []int64{work.ID, home.ID}, view.TagIDs)

	rec = c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d/tags", todo.ID),
		fmt.Sprintf(`{"tag_ids":[%d]}`, home.ID), &view)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{home.ID}, view.TagIDs)

	rec = c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d/tags", todo.ID), `{"tag_ids":[999]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
