package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Opcode is the integer tag identifying the protocol-level meaning of a
// frame. Dispatch and Identify values are fixed by deployed clients.
type Opcode int

const (
	// OpDispatch carries an application event in its payload; the event
	// name rides in the envelope's "e" field.
	OpDispatch Opcode = 0

	// OpHello is sent by the server immediately after the socket opens.
	OpHello Opcode = 1

	// OpIdentify binds the connection to an authenticated user.
	OpIdentify Opcode = 2

	// Error opcodes; each one is sent as a frame and then the connection
	// is closed.
	OpNotAuthenticated     Opcode = 3
	OpUnknownOpcode        Opcode = 4
	OpDecodeError          Opcode = 5
	OpInvalidSession       Opcode = 6
	OpAlreadyAuthenticated Opcode = 7
)

// ErrMalformedPayload is returned when a frame is not the {o,d,e}
// envelope shape.
var ErrMalformedPayload = errors.New("malformed payload envelope")

// Payload is the wire envelope of every frame. Data stays raw so a
// decode-encode round trip preserves it byte for byte.
type Payload struct {
	Op    Opcode          `json:"o"`
	Data  json.RawMessage `json:"d,omitempty"`
	Event string          `json:"e,omitempty"`
}

// NewPayload builds a frame for the given opcode.
func NewPayload(op Opcode, data any) (*Payload, error) {
	p := &Payload{Op: op}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload data: %w", err)
		}
		p.Data = raw
	}
	return p, nil
}

// NewEvent builds a dispatch frame. Event names are upper-cased on the
// way out; receive-side normalization happens in Decode.
func NewEvent(event string, data any) (*Payload, error) {
	p, err := NewPayload(OpDispatch, data)
	if err != nil {
		return nil, err
	}
	p.Event = strings.ToUpper(event)
	return p, nil
}

// Decode parses a raw frame into the envelope. Frames that are not a
// JSON object, or that omit the opcode, are malformed.
func Decode(raw []byte) (*Payload, error) {
	var envelope struct {
		Op    *Opcode         `json:"o"`
		Data  json.RawMessage `json:"d"`
		Event string          `json:"e"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, ErrMalformedPayload
	}
	if envelope.Op == nil {
		return nil, ErrMalformedPayload
	}

	return &Payload{
		Op:    *envelope.Op,
		Data:  envelope.Data,
		Event: strings.ToUpper(envelope.Event),
	}, nil
}

// Encode serializes the envelope.
func (p *Payload) Encode() ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return raw, nil
}

// DataInto unmarshals the payload data into dst.
func (p *Payload) DataInto(dst any) error {
	if len(p.Data) == 0 {
		return ErrMalformedPayload
	}
	if err := json.Unmarshal(p.Data, dst); err != nil {
		return ErrMalformedPayload
	}
	return nil
}
