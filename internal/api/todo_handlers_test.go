package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskpass/server/internal/models"
)

type testClient struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func newTestClient(t *testing.T) (*testClient, *Server) {
	t.Helper()
	s, store := newTestServer(t)
	return &testClient{
		t:       t,
		handler: s.Routes(),
		cookie:  sessionCookie(t, s, store, "alice"),
	}, s
}

// do sends an authenticated JSON request and decodes the response into out
// when out is non-nil.
func (c *testClient) do(method, path string, body string, out any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	r.AddCookie(c.cookie)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, r)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (c *testClient) createTodo(body string) todoView {
	c.t.Helper()
	var created todoView
	rec := c.do(http.MethodPost, "/api/todos", body, &created)
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return created
}

func TestCreateTodo(t *testing.T) {
	c, _ := newTestClient(t)

	created := c.createTodo(`{"title":"  buy milk  "}`)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "buy milk", created.Title)
	assert.Equal(t, models.PriorityMedium, created.Priority)
	assert.False(t, created.Completed)
	assert.Empty(t, created.Tags)
}

func TestCreateTodoValidation(t *testing.T) {
	c, _ := newTestClient(t)

	cases := map[string]string{
		"empty title":        `{"title":"   "}`,
		"bad priority":       `{"title":"x","priority":"urgent"}`,
		"past due date":      fmt.Sprintf(`{"title":"x","due_date":%q}`, time.Now().Add(-time.Hour).Format(time.RFC3339)),
		"recurring no due":   `{"title":"x","is_recurring":true,"recurrence_pattern":"daily"}`,
		"recurring bad rule": fmt.Sprintf(`{"title":"x","is_recurring":true,"recurrence_pattern":"hourly","due_date":%q}`, time.Now().Add(time.Hour).Format(time.RFC3339)),
		"bad reminder":       `{"title":"x","reminder_minutes":0}`,
		"malformed body":     `{"title":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := c.do(http.MethodPost, "/api/todos", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestListTodosSortsAndCounts(t *testing.T) {
	c, _ := newTestClient(t)

	due := time.Now().Add(24 * time.Hour).Format(time.RFC3339)
	c.createTodo(`{"title":"low","priority":"low"}`)
	c.createTodo(fmt.Sprintf(`{"title":"high later","priority":"high","due_date":%q}`, time.Now().Add(48*time.Hour).Format(time.RFC3339)))
	c.createTodo(fmt.Sprintf(`{"title":"high soon","priority":"high","due_date":%q}`, due))
	c.createTodo(`{"title":"medium"}`)

	var resp struct {
		Todos     []todoView `json:"todos"`
		Overdue   int        `json:"overdue"`
		Pending   int        `json:"pending"`
		Completed int        `json:"completed"`
	}
	rec := c.do(http.MethodGet, "/api/todos", "", &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, resp.Todos, 4)
	assert.Equal(t, "high soon", resp.Todos[0].Title)
	assert.Equal(t, "high later", resp.Todos[1].Title)
	assert.Equal(t, "medium", resp.Todos[2].Title)
	assert.Equal(t, "low", resp.Todos[3].Title)
	assert.Equal(t, 4, resp.Pending)
	assert.Zero(t, resp.Overdue)
	assert.Zero(t, resp.Completed)
}

func TestListTodosFiltersByTag(t *testing.T) {
	c, _ := newTestClient(t)

	var tag models.Tag
	rec := c.do(http.MethodPost, "/api/tags", `{"name":"work"}`, &tag)
	require.Equal(t, http.StatusCreated, rec.Code)

	tagged := c.createTodo(`{"title":"tagged"}`)
	c.createTodo(`{"title":"untagged"}`)

	rec = c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d/tags", tagged.ID),
		fmt.Sprintf(`{"tag_ids":[%d]}`, tag.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Todos []todoView `json:"todos"`
	}
	rec = c.do(http.MethodGet, fmt.Sprintf("/api/todos?tag_id=%d", tag.ID), "", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Todos, 1)
	assert.Equal(t, "tagged", resp.Todos[0].Title)
	require.Len(t, resp.Todos[0].Tags, 1)
	assert.Equal(t, "work", resp.Todos[0].Tags[0].Name)
}

func TestGetTodoNotFound(t *testing.T) {
	c, _ := newTestClient(t)

	rec := c.do(http.MethodGet, "/api/todos/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, "/api/todos/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTodoCompletion(t *testing.T) {
	c, _ := newTestClient(t)
	created := c.createTodo(`{"title":"task"}`)

	var updated todoView
	rec := c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d", created.ID),
		`{"title":"task","completed":true}`, &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, updated.Completed)
}

func TestCompletingRecurringTodoAdvancesDueDate(t *testing.T) {
	c, _ := newTestClient(t)

	due := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	created := c.createTodo(fmt.Sprintf(
		`{"title":"water plants","is_recurring":true,"recurrence_pattern":"weekly","due_date":%q}`,
		due.Format(time.RFC3339)))

	var updated todoView
	rec := c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d", created.ID),
		fmt.Sprintf(`{"title":"water plants","completed":true,"is_recurring":true,"recurrence_pattern":"weekly","due_date":%q}`,
			due.Format(time.RFC3339)), &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Stays open with the due date pushed one interval out.
	assert.False(t, updated.Completed)
	require.NotNil(t, updated.DueDate)
	assert.WithinDuration(t, due.AddDate(0, 0, 7), *updated.DueDate, time.Second)
	assert.Nil(t, updated.LastNotificationSent)
}

func TestUpdateTodoKeepsRecurrenceWhenOmitted(t *testing.T) {
	c, _ := newTestClient(t)

	due := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	created := c.createTodo(fmt.Sprintf(
		`{"title":"water plants","is_recurring":true,"recurrence_pattern":"daily","reminder_minutes":30,"due_date":%q}`,
		due.Format(time.RFC3339)))

	// A rename that does not resend the recurrence, due date, or reminder
	// fields leaves all of them intact.
	var updated todoView
	rec := c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d", created.ID),
		`{"title":"water the plants"}`, &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "water the plants", updated.Title)
	assert.True(t, updated.IsRecurring)
	assert.Equal(t, models.RecurDaily, updated.RecurrencePattern)
	require.NotNil(t, updated.DueDate)
	assert.WithinDuration(t, due, *updated.DueDate, time.Second)
	require.NotNil(t, updated.ReminderMinutes)
	assert.Equal(t, 30, *updated.ReminderMinutes)

	// Completion after such an update still rolls the due date forward.
	rec = c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d", created.ID),
		`{"title":"water the plants","completed":true}`, &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, updated.Completed)
	require.NotNil(t, updated.DueDate)
	assert.WithinDuration(t, due.AddDate(0, 0, 1), *updated.DueDate, time.Second)
}

func TestUpdateTodoClearsRecurrence(t *testing.T) {
	c, _ := newTestClient(t)

	due := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	created := c.createTodo(fmt.Sprintf(
		`{"title":"water plants","is_recurring":true,"recurrence_pattern":"weekly","due_date":%q}`,
		due.Format(time.RFC3339)))

	var updated todoView
	rec := c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d", created.ID),
		`{"title":"water plants","is_recurring":false}`, &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, updated.IsRecurring)
	assert.Empty(t, updated.RecurrencePattern)
}

func TestUpdateTodoRecurrenceValidation(t *testing.T) {
	c, _ := newTestClient(t)

	undated := c.createTodo(`{"title":"no due date"}`)
	rec := c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d", undated.ID),
		`{"title":"no due date","is_recurring":true,"recurrence_pattern":"daily"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	due := time.Now().Add(24 * time.Hour)
	dated := c.createTodo(fmt.Sprintf(`{"title":"dated","due_date":%q}`, due.Format(time.RFC3339)))
	rec = c.do(http.MethodPut, fmt.Sprintf("/api/todos/%d", dated.ID),
		`{"title":"dated","is_recurring":true,"recurrence_pattern":"sometimes"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestDeleteTodo(t *testing.T) {
	c, _ := newTestClient(t)
	created := c.createTodo(`{"title":"task"}`)

	rec := c.do(http.MethodDelete, fmt.Sprintf("/api/todos/%d", created.ID), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, fmt.Sprintf("/api/todos/%d", created.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/todos/%d", created.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubtaskLifecycle(t *testing.T) {
	c, _ := newTestClient(t)
	todo := c.createTodo(`{"title":"project"}`)

	var first models.Subtask
	rec := c.do(http.MethodPost, fmt.Sprintf("/api/todos/%d/subtasks", todo.ID), `{"title":"step one"}`, &first)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 0, first.Position)

	var second models.Subtask
	rec = c.do(http.MethodPost, fmt.Sprintf("/api/todos/%d/subtasks", todo.ID), `{"title":"step two"}`, &second)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, second.Position)

	var updated models.Subtask
	rec = c.do(http.MethodPut, fmt.Sprintf("/api/subtasks/%d", first.ID), `{"completed":true}`, &updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, updated.Completed)
	assert.Equal(t, "step one", updated.Title)

	var listing struct {
		Subtasks []models.Subtask       `json:"subtasks"`
		Progress models.SubtaskProgress `json:"progress"`
	}
	rec = c.do(http.MethodGet, fmt.Sprintf("/api/todos/%d/subtasks", todo.ID), "", &listing)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listing.Subtasks, 2)
	assert.Equal(t, 1, listing.Progress.Completed)
	assert.Equal(t, 2, listing.Progress.Total)
	assert.Equal(t, 50, listing.Progress.Percentage)

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/subtasks/%d", second.ID), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodDelete, fmt.Sprintf("/api/subtasks/%d", second.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubtaskRequiresExistingTodo(t *testing.T) {
	c, _ := newTestClient(t)

	rec := c.do(http.MethodPost, "/api/todos/99/subtasks", `{"title":"orphan"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
