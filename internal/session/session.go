// ABOUTME: Session token issuance and verification for authenticated principals
// ABOUTME: Uses HS256 signed JWTs carried in an HttpOnly cookie

package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/commonpantry/pantry-auth/internal/config"
	"github.com/commonpantry/pantry-auth/internal/identity"
)

// Session errors
var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
)

// Profile is the session payload handed back to browser clients. It mirrors
// the resolved principal; it never contains credential material.
type Profile struct {
	Kind        string   `json:"kind"`
	Name        string   `json:"name"`
	Role        string   `json:"role,omitempty"`
	AccountRole string   `json:"accountRole,omitempty"`
	AccountID   *int64   `json:"accountId,omitempty"`
	Consent     bool     `json:"consent"`
	Access      []string `json:"access,omitempty"`
}

// ProfileFromPrincipal converts a resolved principal into its session payload.
func ProfileFromPrincipal(p *identity.Principal) Profile {
	return Profile{
		Kind:        p.Kind,
		Name:        p.Name,
		Role:        p.Role,
		AccountRole: p.AccountRole,
		AccountID:   p.AccountID,
		Consent:     p.Consent,
		Access:      p.Access,
	}
}

// Manager issues and verifies session tokens.
type Manager struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	now        func() time.Time
}

// NewManager creates a session manager from configuration.
func NewManager(cfg config.SessionConfig) *Manager {
	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		now:        time.Now,
	}
}

// Issue signs a session token for the subject and sets it as an HttpOnly
// cookie on the response.
func (m *Manager) Issue(w http.ResponseWriter, subject string, profile Profile) error {
	now := m.now()
	claims := jwt.MapClaims{
		"sub":     subject,
		"iat":     now.Unix(),
		"exp":     now.Add(m.ttl).Unix(),
		"profile": profile,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("signing session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Verify validates a session token from the request cookie and returns the
// subject it was issued for.
func (m *Manager) Verify(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", ErrInvalidSession
	}

	token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredSession
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidSession
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidSession
	}

	return sub, nil
}

// Clear expires the session cookie on the response.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
