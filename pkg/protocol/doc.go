// Package protocol defines the websocket message set: a JSON envelope
// {"type", "ref", "payload"}, one typed request per intent validated at the
// boundary, the response payloads, and the rejection error kinds.
package protocol
