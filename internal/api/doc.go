// Package api implements the HTTP REST API and WebSocket feed for power readings.
//
// This package provides:
//   - CRUD endpoints for power readings rooted at "/"
//   - WebSocket hub broadcasting reading change events
//   - Optional JWT bearer authentication on the reading routes
//   - Middleware stack (request ID, logging, metrics, recovery, CORS, body limit)
//   - Health and Prometheus metrics endpoints
//
// # Routes
//
//	GET    /          list readings (startDate, endDate, minValue, maxValue)
//	POST   /          create a batch of readings
//	GET    /{id}      fetch one reading
//	PUT    /{id}      replace one reading; body id must equal path id
//	DELETE /{id}      delete one reading
//	GET    /audit     reading change history (action, reading_id, limit, offset)
//	GET    /health    component health, 503 when any check fails
//	GET    /metrics   Prometheus exposition
//	GET    /ws        WebSocket upgrade (path configurable)
//
// Static routes are registered before "/{id}" and always win over it.
//
// # Errors
//
// Every error response has the body {"status", "code", "message"}. Storage
// failures are logged with the request ID and reported as a generic 500.
//
// # Security
//
// When security.jwt.enabled is set, the reading and audit routes and the
// WebSocket require an HS256 bearer token. Browsers that cannot set headers
// on a WebSocket handshake may pass the token as ?token=. The verified
// identity is logged and recorded in the audit trail, but never changes what
// a handler does.
package api
