// Package server hosts the transport adapters that feed the engine: a
// long-running HTTP listener for the server deployment shape and an invoke
// handler for the short-lived invocation shape.
package server
