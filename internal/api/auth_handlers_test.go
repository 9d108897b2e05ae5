package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	return rec
}

func TestRegisterOptionsRequiresUsername(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Routes()

	rec := postJSON(handler, "/api/auth/register-options", `{"username":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Username is required"}`, rec.Body.String())

	rec = postJSON(handler, "/api/auth/register-options", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterOptionsRejectsTakenUsername(t *testing.T) {
	s, store := newTestServer(t)
	handler := s.Routes()
	_, err := store.CreateUser(t.Context(), "alice", []byte("handle"), webauthn.Credential{ID: []byte("cred")})
	require.NoError(t, err)

	rec := postJSON(handler, "/api/auth/register-options", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Username already exists"}`, rec.Body.String())
}

func TestRegisterOptionsSetsCeremonyCookies(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Routes()

	rec := postJSON(handler, "/api/auth/register-options", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	names := map[string]bool{}
	for _, cookie := range rec.Result().Cookies() {
		names[cookie.Name] = true
		assert.Equal(t, 300, cookie.MaxAge)
		assert.True(t, cookie.HttpOnly)
	}
	assert.True(t, names["webauthn_challenge"])
	assert.True(t, names["webauthn_username"])
	assert.True(t, names["webauthn_userid"])

	assert.Contains(t, rec.Body.String(), `"publicKey"`)
	assert.Contains(t, rec.Body.String(), `"challenge"`)
}

func TestRegisterVerifyWithoutCeremonyCookies(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Routes()

	rec := postJSON(handler, "/api/auth/register-verify", `{"response":{"id":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Registration session expired"}`, rec.Body.String())
}

func TestRegisterVerifyRequiresResponse(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Routes()

	rec := postJSON(handler, "/api/auth/register-verify", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Registration response is required"}`, rec.Body.String())
}

func TestAddPasskeyOptionsRequiresSession(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Routes()

	rec := postJSON(handler, "/api/auth/add-passkey-options", ``)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddPasskeyOptionsSetsCeremonyCookies(t *testing.T) {
	s, store := newTestServer(t)
	handler := s.Routes()
	cookie := sessionCookie(t, s, store, "alice")

	r := httptest.NewRequest(http.MethodPost, "/api/auth/add-passkey-options", nil)
	r.Header.Set("Origin", "https://example.com")
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
	}
	assert.True(t, names["webauthn_challenge"])
	assert.True(t, names["webauthn_username"])
	assert.True(t, names["webauthn_userid"])
	assert.Contains(t, rec.Body.String(), `"publicKey"`)
}

func TestAddPasskeyVerifyWithoutCeremonyCookies(t *testing.T) {
	s, store := newTestServer(t)
	handler := s.Routes()
	cookie := sessionCookie(t, s, store, "alice")

	r := httptest.NewRequest(http.MethodPost, "/api/auth/add-passkey-verify",
		strings.NewReader(`{"response":{"id":"x"}}`))
	r.Header.Set("Origin", "https://example.com")
	r.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Registration session expired"}`, rec.Body.String())
}

func TestLoginOptionsUnknownUser(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Routes()

	rec := postJSON(handler, "/api/auth/login-options", `{"username":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, rec.Body.String())
}

func TestLoginVerifyWithoutCeremonyCookies(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Routes()

	rec := postJSON(handler, "/api/auth/login-verify", `{"response":{"id":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Login session expired"}`, rec.Body.String())
}

func TestLogoutClearsSessionCookie(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Routes()

	rec := postJSON(handler, "/api/auth/logout", ``)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
