package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Ceremony state lives entirely in the client's cookie jar: the server keeps
// no record of an in-flight registration or login between the begin and
// finish steps. Expiry is enforced by the cookies' max-age alone.
const (
	challengeCookieName  = "webauthn_challenge"
	usernameCookieName   = "webauthn_username"
	userHandleCookieName = "webauthn_userid"

	ceremonyMaxAge = 300 // seconds

	userHandleLength = 32
)

// ErrCeremonyExpired is returned when any required ceremony cookie is
// missing, either because the five minutes ran out or because the begin
// step never happened.
var ErrCeremonyExpired = errors.New("ceremony state missing or expired")

// CeremonyState is the correlated state of one in-flight ceremony.
// UserHandle is only present during registration.
type CeremonyState struct {
	Challenge  string
	Username   string
	UserHandle []byte
}

// NewUserHandle generates the opaque 32-byte user handle minted at the
// start of a registration ceremony.
func NewUserHandle() ([]byte, error) {
	handle := make([]byte, userHandleLength)
	if _, err := rand.Read(handle); err != nil {
		return nil, fmt.Errorf("failed to generate user handle: %w", err)
	}
	return handle, nil
}

func setCeremonyCookie(w http.ResponseWriter, name, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   ceremonyMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// SetRegistrationState stores challenge, username and user handle in the
// three short-lived ceremony cookies.
func SetRegistrationState(w http.ResponseWriter, state CeremonyState, secure bool) {
	setCeremonyCookie(w, challengeCookieName, state.Challenge, secure)
	setCeremonyCookie(w, usernameCookieName, url.QueryEscape(state.Username), secure)
	setCeremonyCookie(w, userHandleCookieName, base64.RawURLEncoding.EncodeToString(state.UserHandle), secure)
}

// SetLoginState stores challenge and username; login needs no user handle
// because the handle is already bound to the stored credential.
func SetLoginState(w http.ResponseWriter, challenge, username string, secure bool) {
	setCeremonyCookie(w, challengeCookieName, challenge, secure)
	setCeremonyCookie(w, usernameCookieName, url.QueryEscape(username), secure)
}

// ReadCeremonyState consumes the ceremony cookies from the request. The
// caller clears the cookies once the ceremony reaches a terminal outcome.
func ReadCeremonyState(r *http.Request, wantHandle bool) (*CeremonyState, error) {
	challenge, err := r.Cookie(challengeCookieName)
	if err != nil {
		return nil, ErrCeremonyExpired
	}
	usernameCookie, err := r.Cookie(usernameCookieName)
	if err != nil {
		return nil, ErrCeremonyExpired
	}
	username, err := url.QueryUnescape(usernameCookie.Value)
	if err != nil || username == "" {
		return nil, ErrCeremonyExpired
	}

	state := &CeremonyState{Challenge: challenge.Value, Username: username}

	if wantHandle {
		handleCookie, err := r.Cookie(userHandleCookieName)
		if err != nil {
			return nil, ErrCeremonyExpired
		}
		handle, err := base64.RawURLEncoding.DecodeString(handleCookie.Value)
		if err != nil || len(handle) == 0 {
			return nil, ErrCeremonyExpired
		}
		state.UserHandle = handle
	}

	return state, nil
}

// ClearCeremonyState expires all three ceremony cookies. Safe to call even
// when some were never set.
func ClearCeremonyState(w http.ResponseWriter, secure bool) {
	for _, name := range []string{challengeCookieName, usernameCookieName, userHandleCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   secure,
		})
	}
}
