// Package http provides HTTP handlers and middleware for the ClubFlow API.
//
// The router exposes the following endpoints. Every request and response body
// is JSON with camelCase keys and RFC 3339 timestamps.
//   - GET /healthz: liveness probe, no authentication.
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     Response: {"token","expiresAt","member"} with the token also surfaced via
//     the `X-Session-Token` header and a `session_token` cookie.
//   - POST /sessions/current/refresh: rotates the current token.
//   - DELETE /sessions/current: revokes the current token and clears the cookie.
//   - DELETE /sessions/{token}: administrators revoke any session.
//   - GET/POST /members, GET/PUT/DELETE /members/{id}: member management using
//     the `memberDTO` payload from member_handler.go.
//   - GET/POST /facilities, GET/PUT/DELETE /facilities/{id}: facility catalog
//     using `facilityDTO`. Mutations require administrator privileges.
//   - GET/POST /bookings, GET/PUT/DELETE /bookings/{id}: bookings using
//     `bookingDTO`. DELETE cancels. A booking that would overfill its facility
//     is answered with 409 and an `admission` object.
//   - POST /bookings/series: recurring bookings, all or nothing.
//   - POST /bookings/check-availability: body {"facilityId","startTime",
//     "endTime","excludeBookingId"}; response {"available","maxConcurrent",
//     "currentBookings","conflictingBookings"}.
//   - GET/POST /events, GET/PUT/DELETE /events/{id}: club calendar events.
//   - GET /calendar/day?date=YYYY-MM-DD&facilityId=: laid-out day view.
//
// Errors are returned as {"errorCode","message","errors"}.
package http
