// Package event defines what the connection manager tells the front
// end, and the non-blocking queue that carries it there.
//
// Every emission is a Payload naming a client id and exactly one of:
// inbound bytes, an error message, or a connected/disconnected flag.
// The JSON shape matches the "tcp-message" channel the desktop front
// end already listens on.
package event

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind says which field of a Payload's event is populated.
type Kind int

const (
	KindData Kind = iota
	KindError
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindError:
		return "error"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Payload is one emission on the event channel.
type Payload struct {
	ID    string       `json:"id"`
	Event MessageEvent `json:"event"`
}

// MessageEvent holds exactly one non-nil field.
type MessageEvent struct {
	Message   *MessageData `json:"message"`
	Error     *string      `json:"error"`
	Connected *bool        `json:"connected"`
}

// MessageData carries raw inbound bytes, uninterpreted.
type MessageData struct {
	Data Bytes `json:"data"`
}

// Bytes marshals as a JSON array of byte values rather than base64,
// which is what the front end decodes.
type Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, c := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(c), 10)
	}
	return append(out, ']'), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	out := make([]byte, len(vals))
	for i, v := range vals {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Data builds a payload for bytes read from the server.  b is stored
// as is; the caller hands over ownership.
func Data(id string, b []byte) Payload {
	return Payload{ID: id, Event: MessageEvent{Message: &MessageData{Data: b}}}
}

// Failure builds an error payload.
func Failure(id, msg string) Payload {
	return Payload{ID: id, Event: MessageEvent{Error: &msg}}
}

// State builds a connected/disconnected payload.
func State(id string, connected bool) Payload {
	return Payload{ID: id, Event: MessageEvent{Connected: &connected}}
}

// Kind reports which field is set.
func (p Payload) Kind() Kind {
	switch {
	case p.Event.Message != nil:
		return KindData
	case p.Event.Error != nil:
		return KindError
	default:
		return KindState
	}
}

// IsDisconnect reports whether p is a connected:false payload.
func (p Payload) IsDisconnect() bool {
	return p.Event.Connected != nil && !*p.Event.Connected
}

func (p Payload) String() string {
	switch p.Kind() {
	case KindData:
		return fmt.Sprintf("%s: data %q", p.ID, []byte(p.Event.Message.Data))
	case KindError:
		return fmt.Sprintf("%s: error %s", p.ID, *p.Event.Error)
	default:
		if p.Event.Connected == nil {
			return p.ID + ": empty"
		}
		return fmt.Sprintf("%s: connected=%v", p.ID, *p.Event.Connected)
	}
}
