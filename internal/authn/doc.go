// Package authn implements passwordless credential authentication.
//
// # Flows
//
// Two public flows are exposed through Service:
//
//   - Challenge: issue a single-use, five-minute login challenge, optionally
//     reporting whether a credential is already enrolled for a supplied
//     identifier hint.
//   - Login: verify a signed WebAuthn assertion against a stored credential
//     and a previously issued challenge, then resolve the credential owner to
//     a session principal.
//
// # Security invariants
//
// A challenge is consumed exactly once, on the first verification attempt
// that reaches it, whether or not that attempt ultimately succeeds. The
// stored sign counter must strictly increase on every accepted assertion;
// equal or lower counters indicate a cloned authenticator or a replayed
// assertion and are rejected. The counter advancement is guarded in the
// database, so two concurrent verifications sharing a baseline counter
// cannot both pass.
//
// Every rejected login surfaces as the single ErrInvalidCredentials value.
// Callers map it to one uniform unauthorized response; no failure cause
// leaves this package except through debug logs.
package authn
