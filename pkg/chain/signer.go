package chain

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/go-bip39"

	"github.com/proofmarket/prover/x/prover/types"
)

// Signer holds an account key and allocates its tx sequences.
type Signer struct {
	priv *secp256k1.PrivKey

	mu       sync.Mutex
	sequence uint64
	synced   bool
}

// NewSigner returns a signer for priv.
func NewSigner(priv *secp256k1.PrivKey) *Signer {
	return &Signer{priv: priv}
}

// NewSignerFromHex parses a hex encoded secp256k1 private key.
func NewSignerFromHex(key string) (*Signer, error) {
	bz, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(key), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}
	if len(bz) != secp256k1.PrivKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", secp256k1.PrivKeySize, len(bz))
	}
	return NewSigner(&secp256k1.PrivKey{Key: bz}), nil
}

// NewSignerFromMnemonic derives the first account key of mnemonic on the
// standard cosmos HD path.
func NewSignerFromMnemonic(mnemonic string) (*Signer, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	derived, err := hd.Secp256k1.Derive()(mnemonic, "", sdk.GetConfig().GetFullBIP44Path())
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	priv, ok := hd.Secp256k1.Generate()(derived).(*secp256k1.PrivKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type")
	}
	return NewSigner(priv), nil
}

// Address returns the account address of the signer.
func (s *Signer) Address() sdk.AccAddress {
	return sdk.AccAddress(s.priv.PubKey().Address())
}

// Sign signs msg with the next sequence and returns the tx bytes.
func (s *Signer) Sign(chainID string, msg types.Msg) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bz, err := types.SignTx(s.priv, chainID, s.sequence+1, msg)
	if err != nil {
		return nil, err
	}
	s.sequence++
	return bz, nil
}

// Synced reports whether the sequence was loaded from the ledger.
func (s *Signer) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// SetSequence records the last sequence the ledger accepted from the signer.
// The local counter never moves backwards.
func (s *Signer) SetSequence(sequence uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sequence > s.sequence {
		s.sequence = sequence
	}
	s.synced = true
}
