// ABOUTME: WebAuthn assertion verification against stored credentials and issued challenges
// ABOUTME: Collapses every failure into a single opaque invalid-credentials outcome

package authn

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/commonpantry/pantry-auth/internal/config"
	"github.com/commonpantry/pantry-auth/internal/store"
)

// ErrInvalidCredentials is the single failure every rejected login collapses
// into. Distinguishing an unknown credential from a bad signature or a stale
// counter would let an attacker profile valid credential ids, so no other
// error crosses this package's boundary for a rejected assertion.
var ErrInvalidCredentials = errors.New("invalid credentials")

// assertionCeremony is the client data type of an authentication assertion.
// Registration responses carry "webauthn.create" and are rejected here.
const assertionCeremony = "webauthn.get"

// ChallengeConsumer consumes a previously issued challenge exactly once.
type ChallengeConsumer interface {
	Consume(value string) (hint string, ok bool)
}

// assertionEnvelope carries the assertion fields checked structurally before
// the full response is handed to the protocol parser.
type assertionEnvelope struct {
	RawID    string `json:"rawId"`
	Response struct {
		ClientDataJSON    string `json:"clientDataJSON"`
		AuthenticatorData string `json:"authenticatorData"`
		Signature         string `json:"signature"`
	} `json:"response"`
}

// clientData is the decoded subset of clientDataJSON this package inspects.
type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// Verifier decides whether a submitted assertion proves possession of the
// private key bound to a known credential for a freshly issued challenge,
// and advances the sign counter for replay protection.
type Verifier struct {
	web         *webauthn.WebAuthn
	rpID        string
	origin      string
	challenges  ChallengeConsumer
	credentials store.CredentialStore
	logger      *slog.Logger
}

// NewVerifier creates a verifier for the configured relying party.
func NewVerifier(cfg config.WebAuthnConfig, challenges ChallengeConsumer, credentials store.CredentialStore) (*Verifier, error) {
	web, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     []string{cfg.RPOrigin},
	})
	if err != nil {
		return nil, fmt.Errorf("configuring webauthn: %w", err)
	}

	return &Verifier{
		web:         web,
		rpID:        cfg.RPID,
		origin:      cfg.RPOrigin,
		challenges:  challenges,
		credentials: credentials,
		logger:      slog.Default().With("component", "authn"),
	}, nil
}

// Verify validates a signed assertion and returns the owner identifier of the
// credential that produced it. The checks run in a fixed order: structural
// validation, ceremony type, origin, challenge consumption, credential
// lookup, cryptographic verification, and strict counter advancement. Any
// failure returns ErrInvalidCredentials; the underlying reason is only
// logged.
func (v *Verifier) Verify(ctx context.Context, assertion []byte) (string, error) {
	var envelope assertionEnvelope
	if err := json.Unmarshal(assertion, &envelope); err != nil {
		return v.reject("malformed assertion json", err)
	}
	if envelope.RawID == "" || envelope.Response.ClientDataJSON == "" ||
		envelope.Response.AuthenticatorData == "" || envelope.Response.Signature == "" {
		return v.reject("assertion missing required fields", nil)
	}

	clientDataRaw, err := decodeBase64URL(envelope.Response.ClientDataJSON)
	if err != nil {
		return v.reject("client data is not base64url", err)
	}
	var cd clientData
	if err := json.Unmarshal(clientDataRaw, &cd); err != nil {
		return v.reject("client data is not valid json", err)
	}

	if cd.Type != assertionCeremony {
		return v.reject("unexpected ceremony type", nil)
	}
	if cd.Challenge == "" || cd.Origin == "" {
		return v.reject("client data missing challenge or origin", nil)
	}
	if cd.Origin != v.origin {
		return v.reject("origin mismatch", nil)
	}

	// Consume exactly once, before any downstream check can fail, so a
	// challenge can never be retried across verification attempts.
	if _, ok := v.challenges.Consume(cd.Challenge); !ok {
		return v.reject("challenge unknown, expired, or already used", nil)
	}

	rawID, err := decodeBase64URL(envelope.RawID)
	if err != nil {
		return v.reject("credential id is not base64url", err)
	}
	credentialID := base64.RawURLEncoding.EncodeToString(rawID)

	cred, err := v.credentials.GetCredentialByID(ctx, credentialID)
	if err != nil {
		return v.reject("credential lookup failed", err)
	}
	if len(cred.PublicKey) == 0 {
		return v.reject("credential has no stored public key", nil)
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(assertion))
	if err != nil {
		return v.reject("assertion failed protocol parsing", err)
	}

	owner := credentialOwner{
		id: []byte(cred.Owner),
		credential: webauthn.Credential{
			ID:        rawID,
			PublicKey: cred.PublicKey,
			Authenticator: webauthn.Authenticator{
				SignCount: cred.SignCount,
			},
		},
	}
	session := webauthn.SessionData{
		Challenge:        cd.Challenge,
		RelyingPartyID:   v.rpID,
		UserID:           owner.WebAuthnID(),
		UserVerification: protocol.VerificationRequired,
	}

	validated, err := v.web.ValidateLogin(owner, session, parsed)
	if err != nil {
		return v.reject("cryptographic verification failed", err)
	}

	// Strict monotonicity: an equal counter means a cloned authenticator or a
	// replayed assertion. The library reports that case as a clone warning and
	// leaves the counter untouched, so both conditions collapse to one check.
	if validated.Authenticator.CloneWarning || validated.Authenticator.SignCount <= cred.SignCount {
		return v.reject("sign count did not advance", nil)
	}

	if err := v.credentials.AdvanceSignCount(ctx, credentialID, validated.Authenticator.SignCount); err != nil {
		return v.reject("persisting sign count failed", err)
	}

	v.logger.Info("assertion verified", "credential_id", credentialID, "owner", cred.Owner)
	return cred.Owner, nil
}

// reject logs the real failure reason and returns the opaque error.
func (v *Verifier) reject(reason string, err error) (string, error) {
	if err != nil {
		v.logger.Debug("assertion rejected", "reason", reason, "error", err)
	} else {
		v.logger.Debug("assertion rejected", "reason", reason)
	}
	return "", ErrInvalidCredentials
}

// credentialOwner adapts a stored credential to the webauthn.User interface.
// The login flow identifies the user by credential, so the adapter carries
// exactly one credential.
type credentialOwner struct {
	id         []byte
	credential webauthn.Credential
}

func (u credentialOwner) WebAuthnID() []byte { return u.id }

func (u credentialOwner) WebAuthnName() string { return string(u.id) }

func (u credentialOwner) WebAuthnDisplayName() string { return string(u.id) }

func (u credentialOwner) WebAuthnCredentials() []webauthn.Credential {
	return []webauthn.Credential{u.credential}
}

// decodeBase64URL accepts both padded and unpadded base64url input, since
// client libraries differ on padding.
func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
