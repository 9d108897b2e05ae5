package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskpass/server/internal/models"
)

func TestCheckReminders(t *testing.T) {
	c, _ := newTestClient(t)

	// Due in 30 minutes, reminder window of an hour: already open.
	soon := time.Now().Add(30 * time.Minute).Format(time.RFC3339)
	dueNow := c.createTodo(fmt.Sprintf(`{"title":"due soon","due_date":%q,"reminder_minutes":60}`, soon))

	// Due in two days with a one hour window: not yet.
	later := time.Now().Add(48 * time.Hour).Format(time.RFC3339)
	c.createTodo(fmt.Sprintf(`{"title":"due later","due_date":%q,"reminder_minutes":60}`, later))

	// No reminder configured.
	c.createTodo(fmt.Sprintf(`{"title":"no reminder","due_date":%q}`, soon))

	var resp struct {
		Reminders []todoView `json:"reminders"`
	}
	rec := c.do(http.MethodGet, "/api/reminders/check", "", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Reminders, 1)
	assert.Equal(t, dueNow.ID, resp.Reminders[0].ID)
}

func TestAckReminderSilencesTodo(t *testing.T) {
	c, _ := newTestClient(t)

	soon := time.Now().Add(30 * time.Minute).Format(time.RFC3339)
	todo := c.createTodo(fmt.Sprintf(`{"title":"due soon","due_date":%q,"reminder_minutes":60}`, soon))

	rec := c.do(http.MethodPost, "/api/reminders/ack", fmt.Sprintf(`{"id":%d}`, todo.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Reminders []todoView `json:"reminders"`
	}
	rec = c.do(http.MethodGet, "/api/reminders/check", "", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Reminders)
}

func TestAckReminderUnknownTodo(t *testing.T) {
	c, _ := newTestClient(t)

	rec := c.do(http.MethodPost, "/api/reminders/ack", `{"id":99}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodPost, "/api/reminders/ack", `{"id":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHolidaysEndpoint(t *testing.T) {
	c, s := newTestClient(t)
	require.NoError(t, s.store.SeedHolidays(t.Context(), []models.Holiday{
		{Date: "2025-08-09", Name: "National Day"},
	}))

	var resp struct {
		Holidays []models.Holiday `json:"holidays"`
	}
	rec := c.do(http.MethodGet, "/api/holidays", "", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Holidays, 1)
	assert.Equal(t, "National Day", resp.Holidays[0].Name)
}
