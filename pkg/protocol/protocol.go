package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxMessageSize bounds a single inbound frame
const MaxMessageSize = 64 * 1024

// Envelope is the wire frame of every message in both directions
type Envelope struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is an outbound message before encoding
type Message struct {
	Type    ResponseType `json:"type"`
	Payload any          `json:"payload"`
}

// NewMessage pairs a response type with its payload
func NewMessage(t ResponseType, payload any) Message {
	return Message{Type: t, Payload: payload}
}

// Encode marshals an outbound message
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Type, err)
	}
	return data, nil
}

// Rejection wraps err as an error message for the submitter of intent
func Rejection(intent Intent, ref string, err error) Message {
	var perr *Error
	if !errors.As(err, &perr) {
		perr = Errorf(KindInternal, "internal error")
	}
	out := *perr
	out.Intent = intent
	out.Ref = ref
	return NewMessage(TypeError, &out)
}

// Decode parses a frame into its envelope and typed, validated request.
// Every failure is returned as an *Error of kind INVALID_OPERATION.
func Decode(data []byte) (Envelope, Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, nil, invalid("malformed message: %v", err)
	}
	newReq, ok := requests[Intent(env.Type)]
	if !ok {
		return env, nil, invalid("unknown message type %q", env.Type)
	}
	req := newReq()
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, req); err != nil {
			return env, nil, invalid("malformed %s payload: %v", env.Type, err)
		}
	}
	if err := req.Validate(); err != nil {
		return env, nil, err
	}
	return env, req, nil
}
