package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// eventCodec holds the CBOR modes used for capture files. Timestamps are
// RFC 3339 strings with nanoseconds so captures sort and diff as text once
// exported; map keys are written in core deterministic order.
type eventCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var codec = mustCodec()

func mustCodec() eventCodec {
	enc, err := cbor.EncOptions{
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: capture encoder: %v", err))
	}
	dec, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
		// Tolerate fields added by newer versions of the tool.
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: capture decoder: %v", err))
	}
	return eventCodec{enc: enc, dec: dec}
}

// EncodeEvent returns the CBOR form of event.
func EncodeEvent(event Event) ([]byte, error) {
	return codec.enc.Marshal(event)
}

// DecodeEvent parses one CBOR-encoded event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	err := codec.dec.Unmarshal(data, &event)
	return event, err
}

func newStreamEncoder(w io.Writer) *cbor.Encoder { return codec.enc.NewEncoder(w) }

func newStreamDecoder(r io.Reader) *cbor.Decoder { return codec.dec.NewDecoder(r) }
