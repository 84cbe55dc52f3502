// ABOUTME: Software authenticator fixture producing real ES256 assertions
// ABOUTME: Builds COSE keys, authenticator data, and signatures for verifier tests

package authn

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/commonpantry/pantry-auth/internal/challenge"
	"github.com/commonpantry/pantry-auth/internal/config"
	"github.com/commonpantry/pantry-auth/internal/store"
)

const (
	testRPID   = "pantry.example.org"
	testOrigin = "https://pantry.example.org"
)

// Authenticator data flag bits
const (
	flagUserPresent  = 0x01
	flagUserVerified = 0x04
)

// testAuthenticator is a software authenticator holding one ES256 key pair.
type testAuthenticator struct {
	t     *testing.T
	key   *ecdsa.PrivateKey
	rawID []byte
}

func newTestAuthenticator(t *testing.T) *testAuthenticator {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	rawID := make([]byte, 16)
	if _, err := rand.Read(rawID); err != nil {
		t.Fatalf("generating credential id: %v", err)
	}

	return &testAuthenticator{t: t, key: key, rawID: rawID}
}

// credentialID returns the external credential id, base64url.
func (a *testAuthenticator) credentialID() string {
	return base64.RawURLEncoding.EncodeToString(a.rawID)
}

// publicKeyCOSE encodes the public key as a COSE EC2 key (kty EC2, alg ES256,
// crv P-256).
func (a *testAuthenticator) publicKeyCOSE() []byte {
	a.t.Helper()

	data, err := cbor.Marshal(map[int]interface{}{
		1:  2,  // kty: EC2
		3:  -7, // alg: ES256
		-1: 1,  // crv: P-256
		-2: a.key.PublicKey.X.FillBytes(make([]byte, 32)),
		-3: a.key.PublicKey.Y.FillBytes(make([]byte, 32)),
	})
	if err != nil {
		a.t.Fatalf("encoding COSE key: %v", err)
	}
	return data
}

// assertionOpts parameterizes a signed assertion. The zero value produces a
// well-formed authentication assertion; individual fields override pieces to
// exercise failure paths.
type assertionOpts struct {
	challenge    string
	origin       string // defaults to testOrigin
	ceremony     string // defaults to "webauthn.get"
	signCount    uint32
	flags        byte // defaults to UP|UV
	corruptSig   bool
	credentialID []byte // defaults to the authenticator's own id
}

// signAssertion produces the JSON request body a browser would submit for a
// login assertion, signed over authenticatorData || SHA256(clientDataJSON).
func (a *testAuthenticator) signAssertion(opts assertionOpts) []byte {
	a.t.Helper()

	if opts.origin == "" {
		opts.origin = testOrigin
	}
	if opts.ceremony == "" {
		opts.ceremony = "webauthn.get"
	}
	if opts.flags == 0 {
		opts.flags = flagUserPresent | flagUserVerified
	}
	if opts.credentialID == nil {
		opts.credentialID = a.rawID
	}

	clientDataJSON, err := json.Marshal(map[string]interface{}{
		"type":      opts.ceremony,
		"challenge": opts.challenge,
		"origin":    opts.origin,
	})
	if err != nil {
		a.t.Fatalf("encoding client data: %v", err)
	}

	rpIDHash := sha256.Sum256([]byte(testRPID))
	authData := make([]byte, 0, 37)
	authData = append(authData, rpIDHash[:]...)
	authData = append(authData, opts.flags)
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], opts.signCount)
	authData = append(authData, count[:]...)

	clientDataHash := sha256.Sum256(clientDataJSON)
	digest := sha256.Sum256(append(append([]byte{}, authData...), clientDataHash[:]...))
	signature, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		a.t.Fatalf("signing assertion: %v", err)
	}
	if opts.corruptSig {
		signature[len(signature)-1] ^= 0xff
	}

	b64 := base64.RawURLEncoding.EncodeToString
	body, err := json.Marshal(map[string]interface{}{
		"id":    b64(opts.credentialID),
		"rawId": b64(opts.credentialID),
		"type":  "public-key",
		"response": map[string]interface{}{
			"clientDataJSON":    b64(clientDataJSON),
			"authenticatorData": b64(authData),
			"signature":         b64(signature),
		},
	})
	if err != nil {
		a.t.Fatalf("encoding assertion body: %v", err)
	}
	return body
}

// verifierFixture bundles the verifier with its real collaborators.
type verifierFixture struct {
	verifier   *Verifier
	challenges *challenge.Store
	store      *store.SQLiteStore
	auth       *testAuthenticator
}

// newVerifierFixture creates a verifier backed by a temp SQLite store and an
// in-memory challenge store, with the authenticator's credential enrolled for
// owner at the given sign count.
func newVerifierFixture(t *testing.T, owner string, signCount uint32) *verifierFixture {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	challenges := challenge.NewStore()
	auth := newTestAuthenticator(t)

	if err := s.SaveCredential(context.Background(), &store.Credential{
		ID:           "row-" + auth.credentialID(),
		CredentialID: auth.credentialID(),
		Owner:        owner,
		PublicKey:    auth.publicKeyCOSE(),
		SignCount:    signCount,
	}); err != nil {
		t.Fatalf("enrolling credential: %v", err)
	}

	verifier, err := NewVerifier(config.WebAuthnConfig{
		RPID:          testRPID,
		RPOrigin:      testOrigin,
		RPDisplayName: "Community Pantry",
	}, challenges, s)
	if err != nil {
		t.Fatalf("creating verifier: %v", err)
	}

	return &verifierFixture{
		verifier:   verifier,
		challenges: challenges,
		store:      s,
		auth:       auth,
	}
}

// issueChallenge issues a challenge with no hint and fails the test on error.
func (f *verifierFixture) issueChallenge(t *testing.T) string {
	t.Helper()

	value, err := f.challenges.Issue("")
	if err != nil {
		t.Fatalf("issuing challenge: %v", err)
	}
	return value
}

// storedSignCount reads the current stored counter for the fixture credential.
func (f *verifierFixture) storedSignCount(t *testing.T) uint32 {
	t.Helper()

	cred, err := f.store.GetCredentialByID(context.Background(), f.auth.credentialID())
	if err != nil {
		t.Fatalf("reading credential: %v", err)
	}
	return cred.SignCount
}
