package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/taskpass/server/internal/models"
)

// ErrVerificationFailed covers every ceremony verification failure
// (challenge, origin, RP id, signature, counter). The wrapped detail is
// for server logs only; clients get one generic message so the response
// never reveals which sub-check failed.
var ErrVerificationFailed = errors.New("verification failed")

// CeremonyConfig configures the relying party. RPID and RPOrigins pin the
// relying party explicitly; when left empty they are derived per request
// from the Origin header (falling back to http://<Host>), with the RP id
// being that origin's hostname.
type CeremonyConfig struct {
	RPDisplayName string
	RPID          string
	RPOrigins     []string
}

// Ceremonies validates WebAuthn registration and authentication responses.
// All attestation and assertion cryptography is delegated to go-webauthn.
type Ceremonies struct {
	cfg CeremonyConfig
}

func NewCeremonies(cfg CeremonyConfig) *Ceremonies {
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = "Todo App"
	}
	return &Ceremonies{cfg: cfg}
}

// RequestOrigin returns the origin the ceremony is expected to match.
func RequestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	return "http://" + r.Host
}

func (c *Ceremonies) relyingParty(r *http.Request) (*webauthn.WebAuthn, error) {
	origin := RequestOrigin(r)

	rpID := c.cfg.RPID
	if rpID == "" {
		u, err := url.Parse(origin)
		if err != nil || u.Hostname() == "" {
			return nil, fmt.Errorf("cannot derive relying party id from origin %q", origin)
		}
		rpID = u.Hostname()
	}

	origins := c.cfg.RPOrigins
	if len(origins) == 0 {
		origins = []string{origin}
	}

	return webauthn.New(&webauthn.Config{
		RPDisplayName: c.cfg.RPDisplayName,
		RPID:          rpID,
		RPOrigins:     origins,
	})
}

// BeginRegistration builds creation options for a new credential. The
// returned challenge must come back on the finish step via the ceremony
// cookies. Attestation is not requested and user verification is preferred,
// not required.
func (c *Ceremonies) BeginRegistration(r *http.Request, user *models.User) (*protocol.CredentialCreation, string, error) {
	rp, err := c.relyingParty(r)
	if err != nil {
		return nil, "", err
	}

	options, session, err := rp.BeginRegistration(
		user,
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementPreferred,
			UserVerification: protocol.VerificationPreferred,
		}),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin registration: %w", err)
	}

	return options, session.Challenge, nil
}

// FinishRegistration verifies the attestation response against the issued
// challenge and the request's origin/RP-id and returns the credential to
// persist.
func (c *Ceremonies) FinishRegistration(r *http.Request, user *models.User, challenge string, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	rp, err := c.relyingParty(r)
	if err != nil {
		return nil, err
	}

	session := webauthn.SessionData{
		Challenge:        challenge,
		UserID:           user.Handle,
		UserVerification: protocol.VerificationPreferred,
	}

	credential, err := rp.CreateCredential(user, session, response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return credential, nil
}

// BeginLogin builds assertion options listing the user's registered
// credentials.
func (c *Ceremonies) BeginLogin(r *http.Request, user *models.User) (*protocol.CredentialAssertion, string, error) {
	rp, err := c.relyingParty(r)
	if err != nil {
		return nil, "", err
	}

	options, session, err := rp.BeginLogin(user, webauthn.WithUserVerification(protocol.VerificationPreferred))
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin login: %w", err)
	}

	return options, session.Challenge, nil
}

// FinishLogin verifies the assertion signature with the stored public key
// on top of the challenge/origin/RP-id checks, then applies the counter
// policy: a signature counter that does not strictly increase is treated as
// a possible cloned authenticator and rejected. The caller persists the new
// counter from the returned credential.
func (c *Ceremonies) FinishLogin(r *http.Request, user *models.User, challenge string, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	rp, err := c.relyingParty(r)
	if err != nil {
		return nil, err
	}

	session := webauthn.SessionData{
		Challenge:        challenge,
		UserID:           user.Handle,
		UserVerification: protocol.VerificationPreferred,
	}

	credential, err := rp.ValidateLogin(user, session, response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if credential.Authenticator.CloneWarning {
		return nil, fmt.Errorf("%w: signature counter did not increase", ErrVerificationFailed)
	}

	return credential, nil
}
