package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/taskpass/server/internal/auth"
	"github.com/taskpass/server/internal/models"
	"github.com/taskpass/server/internal/storage"
)

type usernameRequest struct {
	Username string `json:"username"`
}

type ceremonyResponse struct {
	Response json.RawMessage `json:"response"`
}

// handleRegisterOptions starts a registration ceremony: generates a user
// handle, builds creation options, and parks challenge/username/handle in
// the short-lived ceremony cookies.
func (s *Server) handleRegisterOptions(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, r, fail(kindInputInvalid, "Username is required"))
		return
	}

	_, err := s.store.GetUserByName(r.Context(), username)
	if err == nil {
		writeError(w, r, fail(kindInputInvalid, "Username already exists"))
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, err)
		return
	}

	handle, err := auth.NewUserHandle()
	if err != nil {
		writeError(w, r, err)
		return
	}

	user := &models.User{Username: username, Handle: handle}
	options, challenge, err := s.ceremonies.BeginRegistration(r, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	auth.SetRegistrationState(w, auth.CeremonyState{
		Challenge:  challenge,
		Username:   username,
		UserHandle: handle,
	}, s.secure)
	writeJSON(w, http.StatusOK, options)
}

// handleRegisterVerify finishes a registration ceremony. The ceremony
// cookies are cleared on every terminal outcome, success or failure, so a
// challenge is never verified twice.
func (s *Server) handleRegisterVerify(w http.ResponseWriter, r *http.Request) {
	var req ceremonyResponse
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Response) == 0 {
		writeError(w, r, fail(kindInputInvalid, "Registration response is required"))
		return
	}

	state, err := auth.ReadCeremonyState(r, true)
	if err != nil {
		writeError(w, r, failWith(kindSessionExpired, "Registration session expired", err))
		return
	}

	user, err := s.finishRegistration(r, state, req.Response)
	auth.ClearCeremonyState(w, s.secure)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.sessions.CreateToken(user.ID, user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.sessions.SetCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) finishRegistration(r *http.Request, state *auth.CeremonyState, response json.RawMessage) (*models.User, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, failWith(kindInputInvalid, "Invalid registration response", err)
	}

	candidate := &models.User{Username: state.Username, Handle: state.UserHandle}
	credential, err := s.ceremonies.FinishRegistration(r, candidate, state.Challenge, parsed)
	if err != nil {
		if errors.Is(err, auth.ErrVerificationFailed) {
			return nil, failWith(kindVerificationFailed, "Registration verification failed", err)
		}
		return nil, err
	}

	user, err := s.store.CreateUser(r.Context(), state.Username, state.UserHandle, *credential)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, failWith(kindInputInvalid, "Username already exists", err)
		}
		return nil, err
	}
	return user, nil
}

// handleAddPasskeyOptions starts a registration ceremony for an additional
// passkey on the signed-in account. The new credential shares the account's
// existing user handle.
func (s *Server) handleAddPasskeyOptions(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, fail(kindNotFound, "User not found"))
			return
		}
		writeError(w, r, err)
		return
	}

	options, challenge, err := s.ceremonies.BeginRegistration(r, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	auth.SetRegistrationState(w, auth.CeremonyState{
		Challenge:  challenge,
		Username:   user.Username,
		UserHandle: user.Handle,
	}, s.secure)
	writeJSON(w, http.StatusOK, options)
}

// handleAddPasskeyVerify finishes an add-passkey ceremony for the signed-in
// account. Ceremony cookies are cleared on every terminal outcome, like the
// other verify handlers.
func (s *Server) handleAddPasskeyVerify(w http.ResponseWriter, r *http.Request) {
	claims, err := s.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ceremonyResponse
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Response) == 0 {
		writeError(w, r, fail(kindInputInvalid, "Registration response is required"))
		return
	}

	state, err := auth.ReadCeremonyState(r, true)
	if err != nil {
		writeError(w, r, failWith(kindSessionExpired, "Registration session expired", err))
		return
	}

	err = s.finishAddPasskey(r, claims, state, req.Response)
	auth.ClearCeremonyState(w, s.secure)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) finishAddPasskey(r *http.Request, claims *auth.Claims, state *auth.CeremonyState, response json.RawMessage) error {
	user, err := s.store.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fail(kindNotFound, "User not found")
		}
		return err
	}
	if !bytes.Equal(state.UserHandle, user.Handle) {
		return failWith(kindSessionExpired, "Registration session expired",
			errors.New("ceremony state belongs to a different account"))
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return failWith(kindInputInvalid, "Invalid registration response", err)
	}

	credential, err := s.ceremonies.FinishRegistration(r, user, state.Challenge, parsed)
	if err != nil {
		if errors.Is(err, auth.ErrVerificationFailed) {
			return failWith(kindVerificationFailed, "Registration verification failed", err)
		}
		return err
	}

	if err := s.store.AddCredential(r.Context(), user.Username, *credential); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return failWith(kindInputInvalid, "Passkey already registered", err)
		}
		return err
	}
	return nil
}

// handleLoginOptions starts a login ceremony for a known username.
func (s *Server) handleLoginOptions(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, r, fail(kindInputInvalid, "Username is required"))
		return
	}

	user, err := s.store.GetUserByName(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, fail(kindNotFound, "User not found"))
			return
		}
		writeError(w, r, err)
		return
	}
	if len(user.Credentials) == 0 {
		writeError(w, r, fail(kindInputInvalid, "No passkeys registered"))
		return
	}

	options, challenge, err := s.ceremonies.BeginLogin(r, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	auth.SetLoginState(w, challenge, username, s.secure)
	writeJSON(w, http.StatusOK, options)
}

// handleLoginVerify finishes a login ceremony: assertion verification, the
// counter clone check, counter persistence, then a fresh session token.
func (s *Server) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	var req ceremonyResponse
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Response) == 0 {
		writeError(w, r, fail(kindInputInvalid, "Authentication response is required"))
		return
	}

	state, err := auth.ReadCeremonyState(r, false)
	if err != nil {
		writeError(w, r, failWith(kindSessionExpired, "Login session expired", err))
		return
	}

	user, err := s.finishLogin(r, state, req.Response)
	auth.ClearCeremonyState(w, s.secure)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.sessions.CreateToken(user.ID, user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.sessions.SetCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) finishLogin(r *http.Request, state *auth.CeremonyState, response json.RawMessage) (*models.User, error) {
	user, err := s.store.GetUserByName(r.Context(), state.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fail(kindNotFound, "User not found")
		}
		return nil, err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, failWith(kindInputInvalid, "Invalid authentication response", err)
	}
	if user.Credential(parsed.RawID) == nil {
		return nil, fail(kindNotFound, "Passkey not found")
	}

	credential, err := s.ceremonies.FinishLogin(r, user, state.Challenge, parsed)
	if err != nil {
		if errors.Is(err, auth.ErrVerificationFailed) {
			return nil, failWith(kindVerificationFailed, "Login verification failed", err)
		}
		return nil, err
	}

	if err := s.store.UpdateCredentialCounter(r.Context(), user.Username, credential.ID, credential.Authenticator.SignCount); err != nil {
		return nil, err
	}
	return user, nil
}

// handleLogout clears the session cookie; the token itself simply stops
// being presented.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
