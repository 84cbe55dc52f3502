// ABOUTME: Volunteer, staff, and account persistence methods for SQLiteStore
// ABOUTME: Lookups back the identity resolver; create methods back provisioning

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GetVolunteerByEmail retrieves a volunteer by email.
func (s *SQLiteStore) GetVolunteerByEmail(ctx context.Context, email string) (*Volunteer, error) {
	query := `
		SELECT id, email, name, account_id, consent, created_at
		FROM volunteers
		WHERE email = ?
	`

	return s.scanVolunteer(s.db.QueryRowContext(ctx, query, email))
}

// GetVolunteerByAccountID retrieves the volunteer linked to a client account,
// if any.
func (s *SQLiteStore) GetVolunteerByAccountID(ctx context.Context, accountID int64) (*Volunteer, error) {
	query := `
		SELECT id, email, name, account_id, consent, created_at
		FROM volunteers
		WHERE account_id = ?
	`

	return s.scanVolunteer(s.db.QueryRowContext(ctx, query, accountID))
}

// GetVolunteerRoleNames returns the names of the roles a volunteer is trained
// in, ordered for deterministic output.
func (s *SQLiteStore) GetVolunteerRoleNames(ctx context.Context, volunteerID string) ([]string, error) {
	query := `
		SELECT role_name
		FROM volunteer_roles
		WHERE volunteer_id = ?
		ORDER BY role_name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("querying volunteer roles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning volunteer role: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating volunteer roles: %w", err)
	}

	return names, nil
}

// GetStaffByEmail retrieves a staff member by email.
func (s *SQLiteStore) GetStaffByEmail(ctx context.Context, email string) (*Staff, error) {
	query := `
		SELECT id, email, name, access_json, consent, created_at
		FROM staff
		WHERE email = ?
	`

	var st Staff
	var accessJSON sql.NullString
	var consent int
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&st.ID,
		&st.Email,
		&st.Name,
		&accessJSON,
		&consent,
		&createdAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying staff: %w", err)
	}

	st.Consent = consent != 0
	if accessJSON.Valid && accessJSON.String != "" {
		if err := json.Unmarshal([]byte(accessJSON.String), &st.Access); err != nil {
			return nil, fmt.Errorf("decoding staff access list: %w", err)
		}
	}

	st.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &st, nil
}

// GetAccount retrieves a client account by its numeric id.
func (s *SQLiteStore) GetAccount(ctx context.Context, id int64) (*Account, error) {
	query := `
		SELECT id, name, role, online_access, consent, created_at
		FROM accounts
		WHERE id = ?
	`

	var account Account
	var role sql.NullString
	var onlineAccess, consent int
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Name,
		&role,
		&onlineAccess,
		&consent,
		&createdAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	account.Role = role.String
	account.OnlineAccess = onlineAccess != 0
	account.Consent = consent != 0

	account.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &account, nil
}

// CreateAccount creates a new client account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (id, name, role, online_access, consent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	var role sql.NullString
	if account.Role != "" {
		role = sql.NullString{String: account.Role, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		role,
		boolToInt(account.OnlineAccess),
		boolToInt(account.Consent),
		account.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}

	s.logger.Info("created account", "id", account.ID)
	return nil
}

// CreateVolunteer creates a new volunteer.
func (s *SQLiteStore) CreateVolunteer(ctx context.Context, volunteer *Volunteer) error {
	query := `
		INSERT INTO volunteers (id, email, name, account_id, consent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if volunteer.CreatedAt.IsZero() {
		volunteer.CreatedAt = time.Now().UTC()
	}

	var accountID sql.NullInt64
	if volunteer.AccountID != nil {
		accountID = sql.NullInt64{Int64: *volunteer.AccountID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		volunteer.ID,
		volunteer.Email,
		volunteer.Name,
		accountID,
		boolToInt(volunteer.Consent),
		volunteer.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting volunteer: %w", err)
	}

	s.logger.Info("created volunteer", "id", volunteer.ID, "email", volunteer.Email)
	return nil
}

// AddVolunteerRole records that a volunteer is trained in a role.
func (s *SQLiteStore) AddVolunteerRole(ctx context.Context, volunteerID, roleName string) error {
	query := `
		INSERT INTO volunteer_roles (volunteer_id, role_name)
		VALUES (?, ?)
		ON CONFLICT(volunteer_id, role_name) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query, volunteerID, roleName)
	if err != nil {
		return fmt.Errorf("inserting volunteer role: %w", err)
	}

	return nil
}

// CreateStaff creates a new staff member.
func (s *SQLiteStore) CreateStaff(ctx context.Context, staff *Staff) error {
	query := `
		INSERT INTO staff (id, email, name, access_json, consent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}

	var accessJSON sql.NullString
	if len(staff.Access) > 0 {
		data, err := json.Marshal(staff.Access)
		if err != nil {
			return fmt.Errorf("encoding staff access list: %w", err)
		}
		accessJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		staff.ID,
		staff.Email,
		staff.Name,
		accessJSON,
		boolToInt(staff.Consent),
		staff.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting staff: %w", err)
	}

	s.logger.Info("created staff", "id", staff.ID, "email", staff.Email)
	return nil
}

func (s *SQLiteStore) scanVolunteer(row *sql.Row) (*Volunteer, error) {
	var v Volunteer
	var accountID sql.NullInt64
	var consent int
	var createdAtStr string

	err := row.Scan(
		&v.ID,
		&v.Email,
		&v.Name,
		&accountID,
		&consent,
		&createdAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying volunteer: %w", err)
	}

	if accountID.Valid {
		id := accountID.Int64
		v.AccountID = &id
	}
	v.Consent = consent != 0

	v.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &v, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
