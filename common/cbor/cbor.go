// Package cbor provides CBOR marshaling helpers shared by adapter-supplied
// types, wrapping github.com/fxamacker/cbor/v2 in the same convention
// used by roothash/api's MarshalCBOR/UnmarshalCBOR pair.
package cbor

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.CanonicalEncOptions()
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshaler is implemented by types with a custom CBOR encoding.
type Marshaler interface {
	MarshalCBOR() []byte
}

// Unmarshaler is implemented by types with a custom CBOR decoding.
type Unmarshaler interface {
	UnmarshalCBOR([]byte) error
}

// Marshal serializes v into canonical CBOR bytes. It panics on failure,
// matching the teacher's MarshalCBOR convention of never returning an
// error for well-formed Go values.
func Marshal(v interface{}) []byte {
	b, err := encMode.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Unmarshal decodes CBOR bytes into v.
func Unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}
