// ABOUTME: Credential persistence methods for SQLiteStore
// ABOUTME: Upsert by credential id plus a strictly-monotonic sign count update

package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// SaveCredential upserts a credential by its credential id. Re-registering an
// existing credential id overwrites the owner, key, and counter, which
// supports authenticator replacement for the same external id.
func (s *SQLiteStore) SaveCredential(ctx context.Context, cred *Credential) error {
	query := `
		INSERT INTO credentials (id, credential_id, owner, public_key, sign_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(credential_id) DO UPDATE SET
			owner = excluded.owner,
			public_key = excluded.public_key,
			sign_count = excluded.sign_count,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		cred.ID,
		cred.CredentialID,
		cred.Owner,
		base64.RawURLEncoding.EncodeToString(cred.PublicKey),
		cred.SignCount,
		cred.CreatedAt.Format(time.RFC3339),
		cred.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}

	s.logger.Info("saved credential", "credential_id", cred.CredentialID, "owner", cred.Owner)
	return nil
}

// GetCredentialByID retrieves a credential by its external credential id.
func (s *SQLiteStore) GetCredentialByID(ctx context.Context, credentialID string) (*Credential, error) {
	query := `
		SELECT id, credential_id, owner, public_key, sign_count, created_at, updated_at
		FROM credentials
		WHERE credential_id = ?
	`

	return s.scanCredential(s.db.QueryRowContext(ctx, query, credentialID))
}

// GetCredentialByOwner retrieves the most recently updated credential enrolled
// for an owner identifier. Used for the "already registered" signal on the
// challenge flow.
func (s *SQLiteStore) GetCredentialByOwner(ctx context.Context, owner string) (*Credential, error) {
	query := `
		SELECT id, credential_id, owner, public_key, sign_count, created_at, updated_at
		FROM credentials
		WHERE owner = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`

	return s.scanCredential(s.db.QueryRowContext(ctx, query, owner))
}

// AdvanceSignCount sets the stored sign count only if newCount strictly
// exceeds it. The guard runs inside the UPDATE so two concurrent verifications
// sharing a baseline counter cannot both succeed.
func (s *SQLiteStore) AdvanceSignCount(ctx context.Context, credentialID string, newCount uint32) error {
	query := `
		UPDATE credentials
		SET sign_count = ?, updated_at = ?
		WHERE credential_id = ?
		  AND sign_count < ?
	`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, query, newCount, now, credentialID, newCount)
	if err != nil {
		return fmt.Errorf("updating sign count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish an unknown credential from a counter that failed to advance
		if _, err := s.GetCredentialByID(ctx, credentialID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStaleSignCount
	}

	s.logger.Debug("advanced sign count", "credential_id", credentialID, "sign_count", newCount)
	return nil
}

func (s *SQLiteStore) scanCredential(row *sql.Row) (*Credential, error) {
	var cred Credential
	var publicKeyStr, createdAtStr, updatedAtStr string

	err := row.Scan(
		&cred.ID,
		&cred.CredentialID,
		&cred.Owner,
		&publicKeyStr,
		&cred.SignCount,
		&createdAtStr,
		&updatedAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}

	cred.PublicKey, err = base64.RawURLEncoding.DecodeString(publicKeyStr)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}

	cred.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	cred.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &cred, nil
}
