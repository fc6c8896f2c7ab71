// Package auth implements authentication for the service: the credential
// store (bcrypt password verification, opaque revocable access tokens),
// the profile store, and the auth service orchestrating registration,
// login, logout, token resolution and preference persistence.
//
// Tokens are random values prefixed with "taskhub_"; only SHA-256 hashes
// are stored, so a leaked database cannot be replayed as bearer tokens.
package auth
