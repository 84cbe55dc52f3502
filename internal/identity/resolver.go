// ABOUTME: Resolves a verified credential owner identifier to a session principal
// ABOUTME: Tries volunteer-by-email, staff-by-email, then account-by-numeric-id in order

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/commonpantry/pantry-auth/internal/store"
)

// ErrUnknownIdentity is returned when an identifier matches no account kind.
// Callers must surface it as the same generic failure as a bad assertion.
var ErrUnknownIdentity = errors.New("unknown identity")

// Principal kinds. Exactly one kind is produced per successful resolution.
const (
	KindVolunteer = "volunteer"
	KindStaff     = "staff"
	KindAccount   = "account"
)

// donationEntryRole is the trained-role name that grants the donation entry
// capability. Matched case-insensitively.
const donationEntryRole = "donation entry"

// accessDonationEntry is the capability granted to volunteers trained in
// donation entry.
const accessDonationEntry = "donation_entry"

// defaultAccountRole is assumed when an account has no role set.
const defaultAccountRole = "shopper"

// Principal is a fully resolved session identity with merged role data.
// A volunteer with a linked client account carries both the volunteer role
// and the linked account's role in one principal.
type Principal struct {
	Subject     string // the identifier the credential was enrolled under
	Kind        string
	Name        string
	Role        string
	AccountRole string // set for volunteers with a linked account
	AccountID   *int64
	Consent     bool
	Access      []string
}

// Resolver maps owner identifiers to principals.
type Resolver struct {
	store  store.IdentityStore
	logger *slog.Logger
}

// NewResolver creates a resolver backed by the given identity store.
func NewResolver(identityStore store.IdentityStore) *Resolver {
	return &Resolver{
		store:  identityStore,
		logger: slog.Default().With("component", "identity"),
	}
}

// Resolve turns a bare identifier (email or numeric account id) into a
// principal. The lookup order is fixed: volunteer by email, then staff by
// email, then account by numeric id. Emails are unique per account kind, so
// no identifier can resolve to two different accounts.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*Principal, error) {
	var (
		principal *Principal
		err       error
	)
	if strings.Contains(identifier, "@") {
		principal, err = r.resolveEmail(ctx, identifier)
	} else {
		principal, err = r.resolveNumeric(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}

	principal.Subject = identifier
	return principal, nil
}

func (r *Resolver) resolveEmail(ctx context.Context, email string) (*Principal, error) {
	volunteer, err := r.store.GetVolunteerByEmail(ctx, email)
	if err == nil {
		return r.volunteerPrincipal(ctx, volunteer)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up volunteer: %w", err)
	}

	staff, err := r.store.GetStaffByEmail(ctx, email)
	if err == nil {
		return &Principal{
			Kind:    KindStaff,
			Name:    staff.Name,
			Role:    KindStaff,
			Consent: staff.Consent,
			Access:  staff.Access,
		}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up staff: %w", err)
	}

	r.logger.Debug("identifier matched no volunteer or staff", "identifier", email)
	return nil, ErrUnknownIdentity
}

func (r *Resolver) resolveNumeric(ctx context.Context, identifier string) (*Principal, error) {
	accountID, err := strconv.ParseInt(identifier, 10, 64)
	if err != nil {
		return nil, ErrUnknownIdentity
	}

	account, err := r.store.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	if !account.OnlineAccess {
		r.logger.Debug("account has online access disabled", "account_id", accountID)
		return nil, ErrUnknownIdentity
	}

	volunteer, err := r.store.GetVolunteerByAccountID(ctx, accountID)
	if err == nil {
		return r.volunteerPrincipal(ctx, volunteer)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up linked volunteer: %w", err)
	}

	return &Principal{
		Kind:      KindAccount,
		Name:      account.Name,
		Role:      accountRole(account),
		AccountID: &account.ID,
		Consent:   account.Consent,
	}, nil
}

// volunteerPrincipal builds a volunteer principal, deriving the donation
// entry capability from trained roles and merging the linked client account's
// role when one exists.
func (r *Resolver) volunteerPrincipal(ctx context.Context, volunteer *store.Volunteer) (*Principal, error) {
	p := &Principal{
		Kind:    KindVolunteer,
		Name:    volunteer.Name,
		Role:    KindVolunteer,
		Consent: volunteer.Consent,
	}

	roleNames, err := r.store.GetVolunteerRoleNames(ctx, volunteer.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up volunteer roles: %w", err)
	}
	for _, name := range roleNames {
		if strings.EqualFold(name, donationEntryRole) {
			p.Access = []string{accessDonationEntry}
			break
		}
	}

	if volunteer.AccountID != nil {
		account, err := r.store.GetAccount(ctx, *volunteer.AccountID)
		switch {
		case err == nil:
			p.AccountID = &account.ID
			p.AccountRole = accountRole(account)
		case errors.Is(err, store.ErrNotFound):
			// Dangling link; the volunteer logs in without shopper capabilities
			r.logger.Warn("volunteer references missing account", "volunteer_id", volunteer.ID, "account_id", *volunteer.AccountID)
		default:
			return nil, fmt.Errorf("looking up linked account: %w", err)
		}
	}

	return p, nil
}

func accountRole(account *store.Account) string {
	if account.Role != "" {
		return account.Role
	}
	return defaultAccountRole
}
