// Package httpmodel provides the canonical, transport-agnostic
// representations of an inbound request and outbound response used by the
// routing engine.
//
// Headers are ordered, case-insensitive multimaps. Responses are buffered by
// default and can switch to streaming delivery through an ordered callback
// triple (write-head, write-chunk, end); either way each callback fires
// exactly once and in that order. Response bodies are optionally compressed
// with brotli, gzip, or deflate selected by content negotiation.
package httpmodel
