// ABOUTME: Tests for credential persistence
// ABOUTME: Covers upsert semantics, owner lookup, and monotonic sign count updates

package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestSaveCredentialAndGetByID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cred := &Credential{
		ID:           "row-1",
		CredentialID: "cred-abc",
		Owner:        "v@example.com",
		PublicKey:    []byte{0x01, 0x02, 0x03},
		SignCount:    0,
	}
	if err := s.SaveCredential(ctx, cred); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	got, err := s.GetCredentialByID(ctx, "cred-abc")
	if err != nil {
		t.Fatalf("GetCredentialByID failed: %v", err)
	}

	if got.Owner != "v@example.com" {
		t.Errorf("Owner = %q, want %q", got.Owner, "v@example.com")
	}
	if !bytes.Equal(got.PublicKey, cred.PublicKey) {
		t.Errorf("PublicKey = %v, want %v", got.PublicKey, cred.PublicKey)
	}
	if got.SignCount != 0 {
		t.Errorf("SignCount = %d, want 0", got.SignCount)
	}
}

func TestGetCredentialByID_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetCredentialByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveCredential_UpsertOverwritesOwnerAndKey(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	original := &Credential{
		ID:           "row-1",
		CredentialID: "cred-abc",
		Owner:        "old@example.com",
		PublicKey:    []byte{0x01},
		SignCount:    42,
	}
	if err := s.SaveCredential(ctx, original); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	// Re-registration: same credential id, new owner and key
	replacement := &Credential{
		ID:           "row-2",
		CredentialID: "cred-abc",
		Owner:        "new@example.com",
		PublicKey:    []byte{0x02},
		SignCount:    0,
	}
	if err := s.SaveCredential(ctx, replacement); err != nil {
		t.Fatalf("SaveCredential (upsert) failed: %v", err)
	}

	got, err := s.GetCredentialByID(ctx, "cred-abc")
	if err != nil {
		t.Fatalf("GetCredentialByID failed: %v", err)
	}

	if got.Owner != "new@example.com" {
		t.Errorf("Owner = %q, want %q", got.Owner, "new@example.com")
	}
	if !bytes.Equal(got.PublicKey, []byte{0x02}) {
		t.Errorf("PublicKey = %v, want %v", got.PublicKey, []byte{0x02})
	}
	if got.SignCount != 0 {
		t.Errorf("SignCount = %d, want 0 after re-registration", got.SignCount)
	}
}

func TestGetCredentialByOwner(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SaveCredential(ctx, &Credential{
		ID:           "row-1",
		CredentialID: "cred-abc",
		Owner:        "v@example.com",
		PublicKey:    []byte{0x01},
	}); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	got, err := s.GetCredentialByOwner(ctx, "v@example.com")
	if err != nil {
		t.Fatalf("GetCredentialByOwner failed: %v", err)
	}
	if got.CredentialID != "cred-abc" {
		t.Errorf("CredentialID = %q, want %q", got.CredentialID, "cred-abc")
	}

	if _, err := s.GetCredentialByOwner(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAdvanceSignCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SaveCredential(ctx, &Credential{
		ID:           "row-1",
		CredentialID: "cred-abc",
		Owner:        "v@example.com",
		PublicKey:    []byte{0x01},
		SignCount:    5,
	}); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	if err := s.AdvanceSignCount(ctx, "cred-abc", 6); err != nil {
		t.Fatalf("AdvanceSignCount failed: %v", err)
	}

	got, err := s.GetCredentialByID(ctx, "cred-abc")
	if err != nil {
		t.Fatalf("GetCredentialByID failed: %v", err)
	}
	if got.SignCount != 6 {
		t.Errorf("SignCount = %d, want 6", got.SignCount)
	}
}

func TestAdvanceSignCount_RejectsEqualAndLower(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SaveCredential(ctx, &Credential{
		ID:           "row-1",
		CredentialID: "cred-abc",
		Owner:        "v@example.com",
		PublicKey:    []byte{0x01},
		SignCount:    5,
	}); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	if err := s.AdvanceSignCount(ctx, "cred-abc", 5); !errors.Is(err, ErrStaleSignCount) {
		t.Fatalf("equal counter: err = %v, want ErrStaleSignCount", err)
	}
	if err := s.AdvanceSignCount(ctx, "cred-abc", 4); !errors.Is(err, ErrStaleSignCount) {
		t.Fatalf("lower counter: err = %v, want ErrStaleSignCount", err)
	}

	got, err := s.GetCredentialByID(ctx, "cred-abc")
	if err != nil {
		t.Fatalf("GetCredentialByID failed: %v", err)
	}
	if got.SignCount != 5 {
		t.Errorf("SignCount = %d, want 5 (unchanged)", got.SignCount)
	}
}

func TestAdvanceSignCount_UnknownCredential(t *testing.T) {
	s := setupTestStore(t)

	err := s.AdvanceSignCount(context.Background(), "missing", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAdvanceSignCount_ConcurrentSameBaseline(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SaveCredential(ctx, &Credential{
		ID:           "row-1",
		CredentialID: "cred-abc",
		Owner:        "v@example.com",
		PublicKey:    []byte{0x01},
		SignCount:    10,
	}); err != nil {
		t.Fatalf("SaveCredential failed: %v", err)
	}

	// Two assertions verified against the same baseline counter: only the
	// first advancement may succeed.
	first := s.AdvanceSignCount(ctx, "cred-abc", 11)
	second := s.AdvanceSignCount(ctx, "cred-abc", 11)

	if first != nil {
		t.Fatalf("first advancement failed: %v", first)
	}
	if !errors.Is(second, ErrStaleSignCount) {
		t.Fatalf("second advancement: err = %v, want ErrStaleSignCount", second)
	}
}
