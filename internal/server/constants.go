// Package server exposes the capture control surface over HTTP and delivers
// recognition results to WebSocket consumers.
package server

import "time"

// Server configuration constants
const (
	// Inbound WebSocket control messages per connection
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Outbound events buffered per connection before new ones are dropped
	ClientSendBuffer = 16

	// Bound on a single WebSocket write
	WriteTimeout = 5 * time.Second

	// GET /api/results limits
	DefaultResultsLimit = 20
	MaxResultsLimit     = 200

	// Request body cap for control calls
	MaxRequestBytes = 1 << 20
)
