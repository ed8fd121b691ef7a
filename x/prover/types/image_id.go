package types

import (
	"encoding/hex"
	"strings"
)

// ImageIDLength is the byte length of an image id.
const ImageIDLength = 32

// ImageID identifies a program. It is the sole key of the program registry, the
// request store and the proof store, and is compared byte-exactly.
type ImageID [ImageIDLength]byte

// ParseImageID parses a 64 character hex string with an optional 0x prefix.
func ParseImageID(s string) (ImageID, error) {
	var id ImageID

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*ImageIDLength {
		return id, ErrInvalidImageID.Wrapf("expected %d hex characters, got %d", 2*ImageIDLength, len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, ErrInvalidImageID.Wrap(err.Error())
	}
	return id, nil
}

// ImageIDFromBytes copies a 32 byte slice into an ImageID.
func ImageIDFromBytes(bz []byte) (ImageID, error) {
	var id ImageID
	if len(bz) != ImageIDLength {
		return id, ErrInvalidImageID.Wrapf("expected %d bytes, got %d", ImageIDLength, len(bz))
	}
	copy(id[:], bz)
	return id, nil
}

func (id ImageID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns a copy of the id as a slice.
func (id ImageID) Bytes() []byte {
	return append([]byte{}, id[:]...)
}

func (id ImageID) IsZero() bool {
	return id == ImageID{}
}

func (id ImageID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ImageID) UnmarshalText(text []byte) error {
	parsed, err := ParseImageID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ImageID) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(id[:])
}

func (id *ImageID) UnmarshalCBOR(bz []byte) error {
	var raw []byte
	if err := decMode.Unmarshal(bz, &raw); err != nil {
		return err
	}
	parsed, err := ImageIDFromBytes(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
