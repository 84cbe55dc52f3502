// Package store provides persistent storage for pantry-auth using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with two
// specialized interfaces:
//
//   - CredentialStore: WebAuthn credentials and sign count advancement
//   - IdentityStore: volunteer, staff, and account lookups
//
// The Store interface combines both plus provisioning helpers, and
// SQLiteStore is the single production implementation.
//
// # Sign count semantics
//
// AdvanceSignCount only succeeds when the new counter strictly exceeds the
// stored one, and the comparison happens inside the UPDATE statement. Two
// verifications racing on the same baseline counter therefore cannot both
// pass; the loser receives ErrStaleSignCount and the login is rejected.
//
// # Identity tables
//
// Volunteers, staff, and client accounts are disjoint tables with their own
// schemas. The resolver in internal/identity decides which of them a verified
// credential owner maps to; this package only provides the raw lookups.
//
// # Encoding
//
// Credential ids and public keys are stored base64url-encoded. Timestamps are
// stored as RFC3339 strings in UTC.
package store
