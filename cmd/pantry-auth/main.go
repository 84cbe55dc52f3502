// ABOUTME: Entry point for the pantry-auth passkey authentication service
// ABOUTME: Provides serve, enroll, hash-token, and health subcommands

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"

	"github.com/commonpantry/pantry-auth/internal/authn"
	"github.com/commonpantry/pantry-auth/internal/challenge"
	"github.com/commonpantry/pantry-auth/internal/config"
	"github.com/commonpantry/pantry-auth/internal/identity"
	"github.com/commonpantry/pantry-auth/internal/session"
	"github.com/commonpantry/pantry-auth/internal/store"
	"github.com/commonpantry/pantry-auth/internal/webauth"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                    _                              _   _
  _ __   __ _ _ __ | |_ _ __ _   _        __ _ _  _| |_| |__
 | '_ \ / _' | '_ \| __| '__| | | |_____ / _' | | | | __| '_ \
 | |_) | (_| | | | | |_| |  | |_| |_____| (_| | |_| | |_| | | |
 | .__/ \__,_|_| |_|\__|_|   \__, |      \__,_|\__,_|\__|_| |_|
 |_|                         |___/
`

// getConfigPath returns the path to the config file.
// Priority: PANTRY_AUTH_CONFIG env var > ./pantry-auth.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PANTRY_AUTH_CONFIG"); envPath != "" {
		return envPath
	}
	return "pantry-auth.yaml"
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: pantry-auth <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                       Start the authentication server")
		fmt.Println("  enroll --owner ID [...]     Bind a credential to an identifier")
		fmt.Println("  hash-token TOKEN            Hash an enrollment bearer token for config")
		fmt.Println("  health                      Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "enroll":
		err = runEnroll(ctx)
	case "hash-token":
		err = runHashToken()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("RP:       %s (%s)\n", cfg.WebAuthn.RPID, cfg.WebAuthn.RPOrigin)
	fmt.Println()

	logger.Info("starting pantry-auth",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"rp_id", cfg.WebAuthn.RPID,
	)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	challenges := challenge.NewStore()
	verifier, err := authn.NewVerifier(cfg.WebAuthn, challenges, s)
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}
	service := authn.NewService(challenges, verifier, identity.NewResolver(s), s)

	mux := http.NewServeMux()
	webauth.NewHandler(service, session.NewManager(cfg.Session), cfg).Register(mux)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// runEnroll writes a credential binding directly to the store. It is an
// offline administrative operation; the server does not need to be running.
func runEnroll(ctx context.Context) error {
	fs := flag.NewFlagSet("enroll", flag.ExitOnError)
	owner := fs.String("owner", "", "identifier the credential belongs to (email or account number)")
	credentialID := fs.String("credential-id", "", "credential id, base64url")
	publicKey := fs.String("public-key", "", "COSE public key, base64url")
	signCount := fs.Uint("sign-count", 0, "initial signature counter")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	if *owner == "" || *credentialID == "" || *publicKey == "" {
		return fmt.Errorf("--owner, --credential-id, and --public-key are required")
	}

	keyBytes, err := base64.RawURLEncoding.DecodeString(*publicKey)
	if err != nil {
		return fmt.Errorf("decoding public key: %w", err)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	challenges := challenge.NewStore()
	verifier, err := authn.NewVerifier(cfg.WebAuthn, challenges, s)
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}
	service := authn.NewService(challenges, verifier, identity.NewResolver(s), s)

	if err := service.Enroll(ctx, *owner, *credentialID, keyBytes, uint32(*signCount)); err != nil {
		return fmt.Errorf("enrolling credential: %w", err)
	}

	color.Green("Credential enrolled for %s", *owner)
	return nil
}

// runHashToken prints the bcrypt hash of an enrollment bearer token for use
// as enroll.token_hash in the config file.
func runHashToken() error {
	if len(os.Args) < 3 || os.Args[2] == "" {
		return fmt.Errorf("usage: pantry-auth hash-token TOKEN")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[2]), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing token: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("checking health: %w", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		color.Yellow("Status: %s", body["status"])
		return fmt.Errorf("server is not healthy")
	}

	color.Green("Status: %s", body["status"])
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
