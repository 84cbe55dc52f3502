// ABOUTME: Package documentation for the HTTP authentication surface
// ABOUTME: Documents the endpoint contract and status code mapping

// Package webauth exposes the passkey authentication flows over HTTP.
//
// Endpoints:
//
//	POST /auth/webauthn/challenge  issue a login challenge, optionally
//	                               reporting whether a hinted identifier
//	                               has a credential enrolled
//	POST /auth/webauthn/login      verify a signed assertion and establish
//	                               a session cookie
//	POST /auth/webauthn/enroll     bind a credential to an identifier
//	                               (bearer-token protected)
//	GET  /healthz                  liveness and maintenance status
//
// Status codes follow a strict contract: 400 for structurally malformed
// requests, 401 with a single uniform message for every authentication
// failure, 503 while maintenance mode is raised, and 500 for system errors.
package webauth
