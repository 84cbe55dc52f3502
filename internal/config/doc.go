// Package config handles configuration loading for pantry-auth.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	session:
//	  jwt_secret: "${PANTRY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/pantry/auth.db"
//
// WebAuthn relying party (a single origin is supported):
//
//	webauthn:
//	  rp_id: "pantry.example.org"
//	  rp_origin: "https://pantry.example.org"
//	  rp_display_name: "Community Pantry"
//
// Session cookies:
//
//	session:
//	  jwt_secret: "${PANTRY_JWT_SECRET}"
//	  cookie_name: "pantry_session"
//	  ttl: "168h"
//
// Enrollment endpoint (bcrypt hash of the admin bearer token):
//
//	enroll:
//	  token_hash: "$2a$10$..."
//
// Maintenance mode:
//
//	maintenance:
//	  enabled: false
//	  file: "/var/lib/pantry/maintenance"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
