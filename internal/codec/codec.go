// Package codec turns arbitrary nested records into compact opaque blobs and back.
//
// A blob is canonical CBOR compressed with zstd. Decoded trees use a fixed set
// of Go types: int64, float64, string, bool, nil, []any and map[string]any.
package codec

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// DecodeError reports a blob that could not be turned back into a record.
type DecodeError struct {
	Stage string // "decompress" or "unmarshal"
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: corrupt blob (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err carries a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		ShortestFloat: cbor.ShortestFloatNone,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor encode mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
		// widest limits the library allows; Encode refuses anything beyond them
		MaxNestedLevels:  65535,
		MaxArrayElements: math.MaxInt32,
		MaxMapPairs:      math.MaxInt32,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor decode mode: %v", err))
	}

	compressor, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("codec: zstd writer: %v", err))
	}
	decompressor, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(fmt.Sprintf("codec: zstd reader: %v", err))
	}
}

// Encode serializes a record. Typed structs are accepted as long as their
// fields carry cbor or json tags; they decode back as plain maps.
func Encode(v any) ([]byte, error) {
	raw, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to encode record: %w", err)
	}
	if err := decMode.Wellformed(raw); err != nil {
		return nil, fmt.Errorf("codec: record exceeds decoder limits: %w", err)
	}
	return compressor.EncodeAll(raw, make([]byte, 0, len(raw)/2+16)), nil
}

// MustEncode is Encode for values known to be encodable, such as literals
// built from supported scalar types.
func MustEncode(v any) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode restores the generic value tree stored in blob.
func Decode(blob []byte) (any, error) {
	var out any
	if err := DecodeInto(blob, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeMap restores a blob whose root is a mapping.
func DecodeMap(blob []byte) (map[string]any, error) {
	v, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodeError{Stage: "unmarshal", Err: fmt.Errorf("root is %T, want mapping", v)}
	}
	return m, nil
}

// DecodeInto restores blob into target, which must be a non-nil pointer.
func DecodeInto(blob []byte, target any) error {
	if len(blob) == 0 {
		return &DecodeError{Stage: "decompress", Err: errors.New("empty blob")}
	}
	raw, err := decompressor.DecodeAll(blob, nil)
	if err != nil {
		return &DecodeError{Stage: "decompress", Err: err}
	}
	if err := decMode.Unmarshal(raw, target); err != nil {
		return &DecodeError{Stage: "unmarshal", Err: err}
	}
	return nil
}
