// Package server exposes the movies API over HTTP.
//
// Routes are dispatched by httprouter. Every request passes through one
// middleware chain that assigns a request ID, writes access logs, applies
// security headers and CORS, records metrics, enforces rate limits, resolves
// the session subject, and audits mutating calls.
package server
