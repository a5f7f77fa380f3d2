package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding names a wire format. Clients pick one with ?enc= on connect.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

var (
	ErrEmptyType    = errors.New("envelope type is empty")
	ErrEmptyMessage = errors.New("message is empty")
	ErrEmptyPayload = errors.New("payload is empty")
)

// Envelope is a decoded frame: its type and the still-encoded payload.
type Envelope struct {
	T string
	P []byte
}

// Codec frames payloads as {"t": type, "p": payload}.
type Codec interface {
	Encoding() Encoding
	// Binary reports whether frames go out as binary WebSocket messages.
	Binary() bool
	Encode(t string, payload any) ([]byte, error)
	Decode(b []byte) (Envelope, error)
	Unmarshal(p []byte, out any) error
}

// CodecFor returns the codec for an encoding name; anything unknown gets JSON.
func CodecFor(name string) Codec {
	if Encoding(name) == EncodingMsgpack {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

// DecodePayload unmarshals env's payload into a T.
func DecodePayload[T any](c Codec, env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 {
		return out, fmt.Errorf("%w for type %q", ErrEmptyPayload, env.T)
	}
	if err := c.Unmarshal(env.P, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.T, err)
	}
	return out, nil
}

type jsonFrame struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"`
}

// JSONCodec is the default text codec.
type JSONCodec struct{}

func (JSONCodec) Encoding() Encoding { return EncodingJSON }
func (JSONCodec) Binary() bool       { return false }

func (JSONCodec) Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, ErrEmptyType
	}
	var p json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		p = b
	}
	return json.Marshal(jsonFrame{T: t, P: p})
}

func (JSONCodec) Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var f jsonFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if f.T == "" {
		return Envelope{}, ErrEmptyType
	}
	return Envelope{T: f.T, P: f.P}, nil
}

func (JSONCodec) Unmarshal(p []byte, out any) error {
	return json.Unmarshal(p, out)
}

type msgpackFrame struct {
	T string             `json:"t" msgpack:"t"`
	P msgpack.RawMessage `json:"p,omitempty" msgpack:"p,omitempty"`
}

// MsgpackCodec is the binary codec. It reads the json struct tags so the
// payload types need only one set of tags.
type MsgpackCodec struct{}

func (MsgpackCodec) Encoding() Encoding { return EncodingMsgpack }
func (MsgpackCodec) Binary() bool       { return true }

func (c MsgpackCodec) Encode(t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, ErrEmptyType
	}
	var p msgpack.RawMessage
	if payload != nil {
		b, err := c.marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		p = b
	}
	return c.marshal(msgpackFrame{T: t, P: p})
}

func (c MsgpackCodec) Decode(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var f msgpackFrame
	if err := c.Unmarshal(b, &f); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if f.T == "" {
		return Envelope{}, ErrEmptyType
	}
	return Envelope{T: f.T, P: f.P}, nil
}

func (MsgpackCodec) Unmarshal(p []byte, out any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(p))
	dec.SetCustomStructTag("json")
	return dec.Decode(out)
}

func (MsgpackCodec) marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
