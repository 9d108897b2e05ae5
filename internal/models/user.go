package models

import (
	"bytes"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// User is an account identified by a unique username. Handle is the opaque
// WebAuthn user handle generated when registration begins; it never changes
// once the account exists.
type User struct {
	ID          int64                 `json:"id"`
	Username    string                `json:"username"`
	Handle      []byte                `json:"handle"`
	Credentials []webauthn.Credential `json:"credentials"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

func (u User) WebAuthnID() []byte {
	return u.Handle
}

func (u User) WebAuthnName() string {
	return u.Username
}

func (u User) WebAuthnDisplayName() string {
	return u.Username
}

func (u User) WebAuthnCredentials() []webauthn.Credential {
	return u.Credentials
}

func (u User) WebAuthnIcon() string {
	return ""
}

// Credential returns the stored credential with the given id, or nil if the
// user never registered it.
func (u *User) Credential(id []byte) *webauthn.Credential {
	for i := range u.Credentials {
		if bytes.Equal(u.Credentials[i].ID, id) {
			return &u.Credentials[i]
		}
	}
	return nil
}
