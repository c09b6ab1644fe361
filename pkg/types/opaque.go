package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding formats an Opaque value may have been received in
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Opaque is a value relayed between clients without inspection. It keeps
// the bytes exactly as received and re-encodes them only when the receiving
// side speaks a different frame format. The zero value encodes as null.
type Opaque struct {
	format string
	raw    []byte
}

// RawJSON wraps already encoded JSON as an Opaque value
func RawJSON(data []byte) Opaque {
	return Opaque{format: FormatJSON, raw: append([]byte(nil), data...)}
}

// RawMsgpack wraps already encoded msgpack as an Opaque value
func RawMsgpack(data []byte) Opaque {
	return Opaque{format: FormatMsgpack, raw: append([]byte(nil), data...)}
}

// Format returns the encoding the bytes are held in, or "" for the zero value
func (o Opaque) Format() string { return o.format }

// Bytes returns the held encoding
func (o Opaque) Bytes() []byte { return o.raw }

func (o *Opaque) UnmarshalJSON(data []byte) error {
	*o = RawJSON(data)
	return nil
}

func (o Opaque) MarshalJSON() ([]byte, error) {
	switch o.format {
	case FormatJSON:
		return o.raw, nil
	case FormatMsgpack:
		var v any
		if err := msgpack.Unmarshal(o.raw, &v); err != nil {
			return nil, fmt.Errorf("converting msgpack value: %w", err)
		}
		return json.Marshal(v)
	default:
		return []byte("null"), nil
	}
}

func (o *Opaque) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeRaw()
	if err != nil {
		return err
	}
	*o = RawMsgpack(raw)
	return nil
}

func (o Opaque) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch o.format {
	case FormatMsgpack:
		return enc.Encode(msgpack.RawMessage(o.raw))
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(o.raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("converting json value: %w", err)
		}
		return enc.Encode(exactNumbers(v))
	default:
		return enc.EncodeNil()
	}
}

// exactNumbers replaces json.Number with the narrowest Go number that holds
// it without loss, so integers beyond 2^53 survive a format change.
func exactNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return u
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, item := range x {
			x[k] = exactNumbers(item)
		}
		return x
	case []any:
		for i, item := range x {
			x[i] = exactNumbers(item)
		}
		return x
	default:
		return v
	}
}
