// Package api implements the HTTP REST API and WebSocket server for Gray Logic Motion.
//
// This package provides:
//   - REST endpoints for inspecting controllers and their transition history
//   - A forced-reset endpoint equivalent to the lightingsm-reset event
//   - WebSocket hub broadcasting controller status changes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - The Prometheus scrape endpoint
//
// # Architecture
//
// The API server is a read-mostly window onto the lighting manager. State
// changes never originate here except for resets; controllers push every
// published status to the hub, which relays it to WebSocket clients
// subscribed to the "controller.status" channel.
//
// # Graceful Degradation
//
// History, Prometheus and health checkers are optional. Missing pieces
// answer 404 or are simply left out of the health report.
package api
