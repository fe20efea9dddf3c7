// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values prevents drift between handler boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// GatewayCall caps a single outbound call to the payment provider.
const GatewayCall = 10 * time.Second

// Upload caps reading and storing one photo upload.
const Upload = 30 * time.Second
