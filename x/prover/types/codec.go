package types

import (
	"github.com/fxamacker/cbor/v2"
)

// State and wire values are encoded as deterministic CBOR. Decoding is strict:
// duplicate map keys, unknown fields and indefinite-length items are rejected
// so every accepted encoding has exactly one byte representation.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes v as deterministic CBOR.
func Marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// MustMarshal is Marshal for values that always encode, such as store records.
func MustMarshal(v interface{}) []byte {
	bz, err := encMode.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bz
}

// Unmarshal decodes strict CBOR into v.
func Unmarshal(bz []byte, v interface{}) error {
	return decMode.Unmarshal(bz, v)
}
