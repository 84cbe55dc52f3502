// ABOUTME: Store interfaces and data types for pantry-auth persistence
// ABOUTME: Defines Credential, Volunteer, Staff, Account structs and store interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrStaleSignCount is returned when a sign count update would not strictly
// advance the stored counter. This is the replay-protection failure: a cloned
// authenticator, or a concurrent verification racing on the same baseline
// counter, surfaces here.
var ErrStaleSignCount = errors.New("sign count did not advance")

// Credential represents a WebAuthn credential bound to an account owner.
// CredentialID and PublicKey are persisted base64url-encoded; PublicKey holds
// the raw COSE key bytes in memory.
type Credential struct {
	ID           string // internal row id
	CredentialID string // authenticator credential id, base64url
	Owner        string // owning identifier: email or numeric account id
	PublicKey    []byte
	SignCount    uint32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Volunteer represents a volunteer account, looked up by email.
// AccountID links the volunteer to a client account when the volunteer also
// shops at the pantry.
type Volunteer struct {
	ID        string
	Email     string
	Name      string
	AccountID *int64
	Consent   bool
	CreatedAt time.Time
}

// Staff represents a staff account with an explicit access list.
type Staff struct {
	ID        string
	Email     string
	Name      string
	Access    []string
	Consent   bool
	CreatedAt time.Time
}

// Account represents a client account identified by its numeric id.
// OnlineAccess gates whether the account may log in at all.
type Account struct {
	ID           int64
	Name         string
	Role         string
	OnlineAccess bool
	Consent      bool
	CreatedAt    time.Time
}

// CredentialStore defines the interface for credential persistence.
type CredentialStore interface {
	// SaveCredential upserts by credential id; an existing credential's owner
	// and key are overwritten (authenticator re-registration).
	SaveCredential(ctx context.Context, cred *Credential) error
	GetCredentialByID(ctx context.Context, credentialID string) (*Credential, error)
	GetCredentialByOwner(ctx context.Context, owner string) (*Credential, error)

	// AdvanceSignCount sets the stored counter to newCount only if it strictly
	// increases. Returns ErrStaleSignCount otherwise.
	AdvanceSignCount(ctx context.Context, credentialID string, newCount uint32) error
}

// IdentityStore defines the lookups the identity resolver needs.
type IdentityStore interface {
	GetVolunteerByEmail(ctx context.Context, email string) (*Volunteer, error)
	GetVolunteerByAccountID(ctx context.Context, accountID int64) (*Volunteer, error)
	GetVolunteerRoleNames(ctx context.Context, volunteerID string) ([]string, error)
	GetStaffByEmail(ctx context.Context, email string) (*Staff, error)
	GetAccount(ctx context.Context, id int64) (*Account, error)
}

// Store combines all persistence interfaces plus resource management.
type Store interface {
	CredentialStore
	IdentityStore

	// Provisioning (admin tooling and tests; not part of the login path)
	CreateAccount(ctx context.Context, account *Account) error
	CreateVolunteer(ctx context.Context, volunteer *Volunteer) error
	AddVolunteerRole(ctx context.Context, volunteerID, roleName string) error
	CreateStaff(ctx context.Context, staff *Staff) error

	// Close releases any resources held by the store
	Close() error
}
