package types

import (
	"context"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Message types
const (
	TypeMsgUploadProgram       = "upload_program"
	TypeMsgRequestProof        = "request_proof"
	TypeMsgStoreAndVerifyProof = "store_and_verify_proof"
)

// Msg is a prover module message carried in a Tx body.
type Msg interface {
	Type() string
	// GetSigner returns the bech32 address that must sign the enclosing Tx.
	GetSigner() string
	ValidateBasic() error
}

var (
	_ Msg = &MsgUploadProgram{}
	_ Msg = &MsgRequestProof{}
	_ Msg = &MsgStoreAndVerifyProof{}
)

// MsgUploadProgram registers a program under an image id.
type MsgUploadProgram struct {
	Uploader string  `cbor:"1,keyasint" json:"uploader"`
	ImageID  ImageID `cbor:"2,keyasint" json:"image_id"`
	Program  []byte  `cbor:"3,keyasint" json:"program"`
}

func (msg *MsgUploadProgram) Type() string      { return TypeMsgUploadProgram }
func (msg *MsgUploadProgram) GetSigner() string { return msg.Uploader }

// ValidateBasic performs stateless validation
func (msg *MsgUploadProgram) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Uploader); err != nil {
		return ErrInvalidAddress.Wrapf("invalid uploader address: %s", err)
	}
	if len(msg.Program) == 0 {
		return ErrValidationFailed.Wrap("program is empty")
	}
	return nil
}

// MsgRequestProof requests a proof of the program under ImageID run on Args,
// posting Reward of the module reward denom.
type MsgRequestProof struct {
	Requester string   `json:"requester"`
	ImageID   ImageID  `json:"image_id"`
	Args      Args     `json:"args"`
	Reward    math.Int `json:"reward"`
}

func (msg *MsgRequestProof) Type() string      { return TypeMsgRequestProof }
func (msg *MsgRequestProof) GetSigner() string { return msg.Requester }

// ValidateBasic performs stateless validation
func (msg *MsgRequestProof) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Requester); err != nil {
		return ErrInvalidAddress.Wrapf("invalid requester address: %s", err)
	}
	return ValidateReward(msg.Reward)
}

type msgRequestProofCBOR struct {
	Requester string  `cbor:"1,keyasint"`
	ImageID   ImageID `cbor:"2,keyasint"`
	Args      Args    `cbor:"3,keyasint"`
	Reward    string  `cbor:"4,keyasint"`
}

func (msg MsgRequestProof) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(msgRequestProofCBOR{
		Requester: msg.Requester,
		ImageID:   msg.ImageID,
		Args:      msg.Args,
		Reward:    intString(msg.Reward),
	})
}

func (msg *MsgRequestProof) UnmarshalCBOR(bz []byte) error {
	var raw msgRequestProofCBOR
	if err := decMode.Unmarshal(bz, &raw); err != nil {
		return err
	}
	reward, ok := math.NewIntFromString(raw.Reward)
	if !ok {
		return ErrInvalidReward.Wrapf("cannot parse reward %q", raw.Reward)
	}
	*msg = MsgRequestProof{
		Requester: raw.Requester,
		ImageID:   raw.ImageID,
		Args:      raw.Args,
		Reward:    reward,
	}
	return nil
}

// MsgStoreAndVerifyProof submits proof wire bytes for the program under ImageID.
// The proof bytes are decoded by the ledger after the program lookup.
type MsgStoreAndVerifyProof struct {
	Prover  string  `cbor:"1,keyasint" json:"prover"`
	ImageID ImageID `cbor:"2,keyasint" json:"image_id"`
	Proof   []byte  `cbor:"3,keyasint" json:"proof"`
}

func (msg *MsgStoreAndVerifyProof) Type() string      { return TypeMsgStoreAndVerifyProof }
func (msg *MsgStoreAndVerifyProof) GetSigner() string { return msg.Prover }

// ValidateBasic performs stateless validation
func (msg *MsgStoreAndVerifyProof) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Prover); err != nil {
		return ErrInvalidAddress.Wrapf("invalid prover address: %s", err)
	}
	return nil
}

// MsgUploadProgramResponse is returned by a successful upload.
type MsgUploadProgramResponse struct{}

// MsgRequestProofResponse is returned by a successful request.
type MsgRequestProofResponse struct {
	// Overwrite is true when an earlier request on the image id was replaced.
	Overwrite bool `cbor:"1,keyasint" json:"overwrite"`
}

// MsgStoreAndVerifyProofResponse is returned by a successful verification.
type MsgStoreAndVerifyProofResponse struct {
	Settled bool `cbor:"1,keyasint" json:"settled"`
}

// MsgServer is the prover module's message service.
type MsgServer interface {
	UploadProgram(ctx context.Context, msg *MsgUploadProgram) (*MsgUploadProgramResponse, error)
	RequestProof(ctx context.Context, msg *MsgRequestProof) (*MsgRequestProofResponse, error)
	StoreAndVerifyProof(ctx context.Context, msg *MsgStoreAndVerifyProof) (*MsgStoreAndVerifyProofResponse, error)
}
