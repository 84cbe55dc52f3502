// ABOUTME: In-memory store for single-use, time-limited WebAuthn login challenges
// ABOUTME: Challenges are consumed exactly once and swept opportunistically

package challenge

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// TTL is how long an issued challenge remains valid.
const TTL = 5 * time.Minute

// challengeBytes is the entropy of each issued challenge value.
const challengeBytes = 32

type entry struct {
	hint      string
	expiresAt time.Time
}

// Store tracks outstanding login challenges. It is shared process-wide
// state; all operations are safe for concurrent use, and Consume is
// atomic per value so two concurrent consumers of the same challenge
// cannot both succeed.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry

	// now is replaceable in tests
	now func() time.Time
}

// NewStore creates an empty challenge store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Issue generates a cryptographically random challenge value, records it
// with the optional identifier hint, and returns it. Expired entries are
// swept first, so the map stays bounded without a background timer.
func (s *Store) Issue(hint string) (string, error) {
	buf := make([]byte, challengeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating challenge: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	s.entries[value] = entry{
		hint:      hint,
		expiresAt: s.now().Add(TTL),
	}

	return value, nil
}

// Consume looks up a challenge value and deletes it unconditionally, so a
// value can never be accepted twice. It returns the identifier hint bound
// at issuance and true if the challenge existed and had not expired.
// Absence and expiry are indistinguishable to the caller.
func (s *Store) Consume(value string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	e, ok := s.entries[value]
	if !ok {
		return "", false
	}
	delete(s.entries, value)

	if !e.expiresAt.After(s.now()) {
		return "", false
	}
	return e.hint, true
}

// Clear removes all outstanding challenges. Test use only.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
}

// sweepLocked drops expired entries. Callers must hold s.mu.
func (s *Store) sweepLocked() {
	now := s.now()
	for value, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, value)
		}
	}
}
