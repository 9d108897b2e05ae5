package auth

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "session"

const sessionLifetime = 7 * 24 * time.Hour

// ErrNoSession is the uniform failure for every way a session token can be
// bad: missing, malformed, tampered with, or expired. Callers must not be
// able to tell those apart.
var ErrNoSession = errors.New("no valid session")

// Sessions mints and verifies signed session tokens. The signing secret is
// read from configuration once and never changes for the process lifetime.
type Sessions struct {
	secret []byte
	secure bool
}

func NewSessions(secret string, secure bool) *Sessions {
	return &Sessions{secret: []byte(secret), secure: secure}
}

// CreateToken issues a token for the given user, expiring 7 days from now.
func (s *Sessions) CreateToken(userID int64, username string) (string, error) {
	claims := Claims{
		Subject:  userID,
		Username: username,
		Expiry:   time.Now().Add(sessionLifetime).Unix(),
	}
	return encodeToken(claims, s.secret)
}

// VerifyToken recomputes the signature over the token's own header and
// payload segments, compares in constant time, and checks expiry and claim
// presence. Every failure is ErrNoSession.
func (s *Sessions) VerifyToken(token string) (*Claims, error) {
	signingInput, payload, signature, err := decodeToken(token)
	if err != nil {
		return nil, ErrNoSession
	}

	if !hmac.Equal(signature, sign(signingInput, s.secret)) {
		return nil, ErrNoSession
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrNoSession
	}
	if claims.Subject <= 0 || claims.Username == "" || claims.Expiry == 0 {
		return nil, ErrNoSession
	}
	if claims.Expiry <= time.Now().Unix() {
		return nil, ErrNoSession
	}

	return &claims, nil
}

// Expiry returns the instant a session issued now will lapse; used for the
// cookie's Expires attribute.
func (s *Sessions) Expiry() time.Time {
	return time.Now().Add(sessionLifetime)
}

// FromRequest resolves the session claims from the request's cookie jar.
func (s *Sessions) FromRequest(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return s.VerifyToken(cookie.Value)
}

// SetCookie attaches the session token to the response.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.Expiry(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secure,
	})
}

// ClearCookie logs the client out by expiring the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secure,
	})
}
