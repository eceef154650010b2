/*
Package metrics provides Prometheus instrumentation for the research
pipeline, covering HTTP, agent searches, runs, caching and streaming.

The Collector registers every series through promauto against a caller
supplied registry, so tests can use isolated registries while the
production path shares the process-global one. Series are grouped by
namespace and labelled for Grafana-style aggregation: HTTP requests by
method/path/status class, agent searches by agent and outcome, run and
node counters by terminal status, cache traffic by cache type, and a
single gauge for live streaming connections.
*/
package metrics
