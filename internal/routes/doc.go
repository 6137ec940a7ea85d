// Package routes defines the declarative route table: ordered route
// entries pairing a match condition with an action list and a terminal
// flag.
//
// Actions form a closed, tagged set keyed by a "type" discriminator. The
// flat action schema is a wire contract between the build phase that
// persists the table and the run phase that loads it; field names and type
// values must not change without a compatibility plan. Unknown action types
// fail at table construction, never per request.
package routes
