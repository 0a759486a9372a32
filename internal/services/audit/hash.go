package audit

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

// encMode is CBOR Core Deterministic Encoding (RFC 8949 §4.2) with
// nanosecond RFC 3339 timestamps, so equal records hash equally.
var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	opts.TextMarshaler = cbor.TextMarshalerTextString
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("audit: CBOR encoder initialization failed: " + err.Error())
	}
}

// ContentHash is the data hash recorded for v.
func ContentHash(v any) (messages.Hash, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode audit record: %w", err)
	}
	return messages.Hash(xxhash.Sum64(b)), nil
}
