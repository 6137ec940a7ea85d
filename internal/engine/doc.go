// Package engine evaluates a request against the route table and executes
// the matched routes' actions.
//
// Evaluation walks the table in order. Every route whose condition is
// satisfied runs its actions top to bottom against the same request and
// response, so condition-less header-only rules apply cumulatively before a
// later rule finally serves the response. A terminal action or a done route
// stops further evaluation; when the table is exhausted the response
// remains whatever the last non-terminal action left it as.
//
// The engine behaves identically whether invoked once per process or many
// times concurrently in one long-lived process: all mutable state is
// confined to one RequestContext.
package engine
