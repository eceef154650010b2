// Package types defines the shared data model of the research pipeline:
// the research tree, per-agent results, aggregated content, streaming
// updates, and the structured error type used across all components.
//
// Types in this package are plain data carriers. Behavior lives in the
// domain packages (research, aggregate, scoring, subtopics, embedding,
// streaming) which produce and consume these values.
package types
