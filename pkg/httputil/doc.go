// Package httputil contains shared HTTP plumbing: JSON response writers,
// request body and parameter parsing, and the generic middleware stack
// (request IDs, logging, panic recovery, CORS, body size limits).
//
// Handlers in pkg/api build on these helpers so that error bodies stay
// uniform: every failure is a JSON object with a single "error" key, and
// internal failures never leak error text to the client.
package httputil
