package types

import (
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// TxBody carries exactly one prover message.
type TxBody struct {
	UploadProgram       *MsgUploadProgram       `cbor:"1,keyasint,omitempty"`
	RequestProof        *MsgRequestProof        `cbor:"2,keyasint,omitempty"`
	StoreAndVerifyProof *MsgStoreAndVerifyProof `cbor:"3,keyasint,omitempty"`
}

// NewTxBody wraps msg in a body.
func NewTxBody(msg Msg) (TxBody, error) {
	switch m := msg.(type) {
	case *MsgUploadProgram:
		return TxBody{UploadProgram: m}, nil
	case *MsgRequestProof:
		return TxBody{RequestProof: m}, nil
	case *MsgStoreAndVerifyProof:
		return TxBody{StoreAndVerifyProof: m}, nil
	default:
		return TxBody{}, ErrInvalidTx.Wrapf("unsupported message %T", msg)
	}
}

// GetMsg returns the single message of the body.
func (b TxBody) GetMsg() (Msg, error) {
	var msgs []Msg
	if b.UploadProgram != nil {
		msgs = append(msgs, b.UploadProgram)
	}
	if b.RequestProof != nil {
		msgs = append(msgs, b.RequestProof)
	}
	if b.StoreAndVerifyProof != nil {
		msgs = append(msgs, b.StoreAndVerifyProof)
	}
	if len(msgs) != 1 {
		return nil, ErrInvalidTx.Wrapf("tx body must carry exactly one message, found %d", len(msgs))
	}
	return msgs[0], nil
}

// SignDoc is the canonical document covered by a Tx signature.
type SignDoc struct {
	ChainID  string `cbor:"1,keyasint"`
	Sequence uint64 `cbor:"2,keyasint"`
	Body     TxBody `cbor:"3,keyasint"`
}

// Tx is a signed prover transaction. Sequence must exceed the last sequence
// accepted from the signer.
type Tx struct {
	Body      TxBody `cbor:"1,keyasint"`
	ChainID   string `cbor:"2,keyasint"`
	Sequence  uint64 `cbor:"3,keyasint"`
	PubKey    []byte `cbor:"4,keyasint"`
	Signature []byte `cbor:"5,keyasint"`
}

// SignBytes returns the canonical bytes the signer signs.
func (tx Tx) SignBytes() ([]byte, error) {
	return encMode.Marshal(SignDoc{ChainID: tx.ChainID, Sequence: tx.Sequence, Body: tx.Body})
}

// Signer verifies the signature and returns the address of the signing key.
func (tx Tx) Signer() (sdk.AccAddress, error) {
	if len(tx.PubKey) != secp256k1.PubKeySize {
		return nil, ErrInvalidSignature.Wrapf("public key must be %d bytes, got %d", secp256k1.PubKeySize, len(tx.PubKey))
	}
	signBytes, err := tx.SignBytes()
	if err != nil {
		return nil, ErrInvalidTx.Wrap(err.Error())
	}

	pubKey := &secp256k1.PubKey{Key: tx.PubKey}
	if !pubKey.VerifySignature(signBytes, tx.Signature) {
		return nil, ErrInvalidSignature.Wrap("signature does not match public key")
	}
	return sdk.AccAddress(pubKey.Address()), nil
}

// Marshal returns the wire encoding of the tx.
func (tx Tx) Marshal() ([]byte, error) {
	return encMode.Marshal(tx)
}

// DecodeTx decodes tx wire bytes.
func DecodeTx(bz []byte) (Tx, error) {
	var tx Tx
	if err := decMode.Unmarshal(bz, &tx); err != nil {
		return Tx{}, ErrInvalidTx.Wrap(err.Error())
	}
	return tx, nil
}

// SignTx builds and signs a tx carrying msg and returns its wire bytes.
func SignTx(priv cryptotypes.PrivKey, chainID string, sequence uint64, msg Msg) ([]byte, error) {
	body, err := NewTxBody(msg)
	if err != nil {
		return nil, err
	}

	tx := Tx{
		Body:     body,
		ChainID:  chainID,
		Sequence: sequence,
		PubKey:   priv.PubKey().Bytes(),
	}
	signBytes, err := tx.SignBytes()
	if err != nil {
		return nil, err
	}
	tx.Signature, err = priv.Sign(signBytes)
	if err != nil {
		return nil, err
	}
	return tx.Marshal()
}
