// Package api hosts the HTTP handlers of the movies API.
//
// Handler translates repository results and errors into status codes and
// bodies. Persistence is delegated to a storage.Repository and login state to
// an auth.Guard, both injected at construction time; the package holds no
// globals. Route parameters are read from the httprouter context so every
// handler stays a plain http.HandlerFunc.
//
// Handlers assume the middleware in internal/server has already assigned a
// request ID, applied rate limits, and resolved any presented session token.
// They still authenticate on their own when no resolved session is present,
// so they behave the same when mounted without that stack.
package api
