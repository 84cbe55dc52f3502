// ABOUTME: Authentication orchestrator composing challenge issuance, verification, and resolution
// ABOUTME: Also exposes the administrative credential enrollment operation

package authn

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/commonpantry/pantry-auth/internal/challenge"
	"github.com/commonpantry/pantry-auth/internal/identity"
	"github.com/commonpantry/pantry-auth/internal/store"
)

// ChallengeResult is the public outcome of the challenge flow. Registered and
// CredentialID are only populated when the caller supplied an identifier hint
// that has a credential enrolled; the hint is never trusted for
// authorization, only for this UX signal.
type ChallengeResult struct {
	Challenge    string
	Registered   bool
	CredentialID string
}

// Service composes the challenge store, assertion verifier, and identity
// resolver into the two public authentication flows.
type Service struct {
	challenges  *challenge.Store
	verifier    *Verifier
	resolver    *identity.Resolver
	credentials store.CredentialStore
	logger      *slog.Logger
}

// NewService creates the authentication orchestrator.
func NewService(challenges *challenge.Store, verifier *Verifier, resolver *identity.Resolver, credentials store.CredentialStore) *Service {
	return &Service{
		challenges:  challenges,
		verifier:    verifier,
		resolver:    resolver,
		credentials: credentials,
		logger:      slog.Default().With("component", "authn"),
	}
}

// Challenge issues a fresh login challenge. Failures here are system errors,
// not authentication failures: nothing has been authenticated yet.
func (s *Service) Challenge(ctx context.Context, identifier string) (*ChallengeResult, error) {
	value, err := s.challenges.Issue(identifier)
	if err != nil {
		return nil, err
	}

	result := &ChallengeResult{Challenge: value}

	if identifier != "" {
		cred, err := s.credentials.GetCredentialByOwner(ctx, identifier)
		switch {
		case err == nil:
			result.Registered = true
			result.CredentialID = cred.CredentialID
		case errors.Is(err, store.ErrNotFound):
			// Unenrolled hint; the client gets a challenge either way
		default:
			return nil, fmt.Errorf("checking enrollment for hint: %w", err)
		}
	}

	return result, nil
}

// Login verifies a signed assertion and resolves the credential owner to a
// principal. Every failure inside the verification decision path, including
// unexpected resolver errors, is reported as ErrInvalidCredentials so the
// caller cannot distinguish failure causes.
func (s *Service) Login(ctx context.Context, assertion []byte) (*identity.Principal, error) {
	owner, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	principal, err := s.resolver.Resolve(ctx, owner)
	if err != nil {
		if !errors.Is(err, identity.ErrUnknownIdentity) {
			s.logger.Error("identity resolution failed after verified assertion", "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	return principal, nil
}

// Enroll binds a credential to an owner identifier. This is an administrative
// operation, not part of the login path; re-enrolling an existing credential
// id replaces its owner and key.
func (s *Service) Enroll(ctx context.Context, owner, credentialID string, publicKey []byte, signCount uint32) error {
	if owner == "" || credentialID == "" || len(publicKey) == 0 {
		return fmt.Errorf("owner, credential id, and public key are required")
	}

	rawID, err := decodeBase64URL(credentialID)
	if err != nil {
		return fmt.Errorf("decoding credential id: %w", err)
	}

	return s.credentials.SaveCredential(ctx, &store.Credential{
		ID:           uuid.NewString(),
		CredentialID: base64.RawURLEncoding.EncodeToString(rawID),
		Owner:        owner,
		PublicKey:    publicKey,
		SignCount:    signCount,
	})
}
