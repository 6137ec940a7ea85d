// Package wire implements the transport encodings exchanged with the edge:
// the synchronous invocation event model and the streaming framing that
// prefixes a raw body with a JSON header block.
package wire
