// ABOUTME: HTTP handlers for the passkey authentication endpoints
// ABOUTME: Maps service outcomes onto the JSON response and status contract

package webauth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/commonpantry/pantry-auth/internal/authn"
	"github.com/commonpantry/pantry-auth/internal/config"
	"github.com/commonpantry/pantry-auth/internal/session"
)

// Response messages. Login failures share one message so callers cannot
// distinguish failure causes.
const (
	msgMalformed   = "Malformed request"
	msgInvalid     = "Invalid credentials"
	msgMaintenance = "Service temporarily unavailable"
	msgInternal    = "Internal server error"
)

// Handler serves the authentication HTTP endpoints.
type Handler struct {
	service  *authn.Service
	sessions *session.Manager
	config   *config.Config
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler for the authentication endpoints.
func NewHandler(service *authn.Service, sessions *session.Manager, cfg *config.Config) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		config:   cfg,
		logger:   slog.Default().With("component", "webauth"),
	}
}

// Register mounts the authentication routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/webauthn/challenge", h.handleChallenge)
	mux.HandleFunc("POST /auth/webauthn/login", h.handleLogin)
	mux.HandleFunc("POST /auth/webauthn/enroll", h.handleEnroll)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

type challengeRequest struct {
	Identifier string `json:"identifier"`
}

type challengeResponse struct {
	Challenge    string `json:"challenge"`
	Registered   bool   `json:"registered"`
	CredentialID string `json:"credentialId,omitempty"`
}

func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if h.config.MaintenanceActive() {
		writeMessage(w, http.StatusServiceUnavailable, msgMaintenance)
		return
	}

	// The body is optional; an identifier hint only enriches the response.
	var req challengeRequest
	body, err := readBody(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, msgMalformed)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, msgMalformed)
			return
		}
	}

	result, err := h.service.Challenge(r.Context(), strings.TrimSpace(req.Identifier))
	if err != nil {
		h.logger.Error("challenge issuance failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, challengeResponse{
		Challenge:    result.Challenge,
		Registered:   result.Registered,
		CredentialID: result.CredentialID,
	})
}

// assertionShape is the minimal structural check applied before the body is
// handed to the verifier. Structural problems are the client's bug and get
// 400; everything past this point is an authentication decision and gets 401.
type assertionShape struct {
	RawID    string `json:"rawId"`
	Response struct {
		ClientDataJSON    string `json:"clientDataJSON"`
		AuthenticatorData string `json:"authenticatorData"`
		Signature         string `json:"signature"`
	} `json:"response"`
}

func (s *assertionShape) complete() bool {
	return s.RawID != "" &&
		s.Response.ClientDataJSON != "" &&
		s.Response.AuthenticatorData != "" &&
		s.Response.Signature != ""
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.config.MaintenanceActive() {
		writeMessage(w, http.StatusServiceUnavailable, msgMaintenance)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, msgMalformed)
		return
	}

	var shape assertionShape
	if err := json.Unmarshal(body, &shape); err != nil || !shape.complete() {
		writeMessage(w, http.StatusBadRequest, msgMalformed)
		return
	}

	principal, err := h.service.Login(r.Context(), body)
	if err != nil {
		if errors.Is(err, authn.ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, msgInvalid)
			return
		}
		h.logger.Error("login failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	profile := session.ProfileFromPrincipal(principal)
	if err := h.sessions.Issue(w, principal.Subject, profile); err != nil {
		h.logger.Error("session issuance failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

type enrollRequest struct {
	Owner        string `json:"owner"`
	CredentialID string `json:"credentialId"`
	PublicKey    string `json:"publicKey"`
	SignCount    uint32 `json:"signCount"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeEnroll(r) {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgMalformed)
		return
	}

	publicKey, err := decodeBase64Field(req.PublicKey)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, msgMalformed)
		return
	}

	if err := h.service.Enroll(r.Context(), req.Owner, req.CredentialID, publicKey, req.SignCount); err != nil {
		writeMessage(w, http.StatusBadRequest, msgMalformed)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// authorizeEnroll checks the bearer token against the configured bcrypt hash.
func (h *Handler) authorizeEnroll(r *http.Request) bool {
	hash := h.config.Enroll.TokenHash
	if hash == "" {
		return false
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.config.MaintenanceActive() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "maintenance"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// maxBodyBytes bounds request bodies; assertions are a few KB at most.
const maxBodyBytes = 64 * 1024

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
}

func decodeBase64Field(value string) ([]byte, error) {
	if data, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(value)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("encoding response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
