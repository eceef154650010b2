// Package api defines the request and response types of the research
// HTTP API.
//
// # API Overview
//
// The API exposes the recursive research pipeline:
//   - Starting and cancelling research runs
//   - Polling run status and querying run history
//   - Live progress streaming over SSE and WebSocket
//   - Health probes and Prometheus metrics
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// All research endpoints live under /api/v1.
package api
