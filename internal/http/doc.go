// Package http exposes the family calendar over JSON.
//
// Routes:
//   - GET /health: liveness probe.
//   - GET /metrics: Prometheus exposition, when a metrics handler is configured.
//   - GET /api/users, POST /api/users, GET /api/users/{id}: family members,
//     exchanging the userDTO payload defined in user_handler.go.
//   - GET /api/events?user_id=, POST /api/events, GET|PUT|DELETE /api/events/{id}:
//     base events in calendar.Record form. POST honours an Idempotency-Key
//     header; create and replace responses carry conflict warnings.
//   - GET /api/occurrences?start=&end=&tz=&user_id=: the expanded calendar
//     for a window, in the occurrenceDTO shape of occurrence_handler.go.
//   - GET /api/calendar.ics?user_id=: an iCalendar subscription feed.
//
// user_id may be repeated or comma separated. Every response carries an
// X-Request-ID header that also appears on the request's log lines.
package http
