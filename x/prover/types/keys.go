package types

import (
	"encoding/binary"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"
)

const (
	// ModuleName defines the module name
	ModuleName = "prover"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// RouterKey is the message route for prover
	RouterKey = ModuleName

	// QueryStorePath is the ABCI query path that reads a raw key from the module store.
	QueryStorePath = "/store/" + StoreKey + "/key"
)

var (
	// ParamsKey is the key for module parameters
	ParamsKey = []byte{0x01}

	// ProgramKeyPrefix is the prefix for program storage
	ProgramKeyPrefix = []byte{0x02}

	// ProofRequestKeyPrefix is the prefix for proof request storage
	ProofRequestKeyPrefix = []byte{0x03}

	// ProofKeyPrefix is the prefix for verified proof storage
	ProofKeyPrefix = []byte{0x04}

	// SequenceKeyPrefix is the prefix for per-signer transaction sequences
	SequenceKeyPrefix = []byte{0x05}
)

// ProgramKey returns the store key for the program registered under id.
func ProgramKey(id ImageID) []byte {
	return append(append([]byte{}, ProgramKeyPrefix...), id[:]...)
}

// ProofRequestKey returns the store key for the proof request on id.
func ProofRequestKey(id ImageID) []byte {
	return append(append([]byte{}, ProofRequestKeyPrefix...), id[:]...)
}

// ProofKey returns the store key for the last verified proof of id.
func ProofKey(id ImageID) []byte {
	return append(append([]byte{}, ProofKeyPrefix...), id[:]...)
}

// SequenceKey returns the store key holding the last accepted sequence of addr.
func SequenceKey(addr sdk.AccAddress) []byte {
	return append(append([]byte{}, SequenceKeyPrefix...), address.MustLengthPrefix(addr)...)
}

// ImageIDFromKey extracts the image id from a program, request or proof key.
func ImageIDFromKey(key []byte) (ImageID, error) {
	var id ImageID
	if len(key) != 1+ImageIDLength {
		return id, ErrInvalidImageID.Wrapf("store key has length %d", len(key))
	}
	copy(id[:], key[1:])
	return id, nil
}

// EncodeSequence encodes a signer sequence as stored under SequenceKey.
func EncodeSequence(n uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, n)
	return bz
}

// DecodeSequence decodes a stored sequence. Missing or malformed values read as zero.
func DecodeSequence(bz []byte) uint64 {
	if len(bz) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(bz)
}
