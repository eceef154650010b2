// Package handlers implements the HTTP surface of the research
// pipeline: run lifecycle endpoints, SSE and WebSocket progress
// streams, health probes and the Prometheus metrics endpoint.
package handlers
