// Package api wires the HTTP surface: the server, its middleware chain and
// the per-concern handler sets. Handlers stay thin; validation and
// persistence live in the auth and tasks services.
package api
