package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofmarket/prover/x/prover/types"
)

var _ types.MsgServer = msgServer{}

type msgServer struct {
	Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// UploadProgram handles program registration
func (ms msgServer) UploadProgram(goCtx context.Context, msg *types.MsgUploadProgram) (*types.MsgUploadProgramResponse, error) {
	// Validate message
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	uploader, err := sdk.AccAddressFromBech32(msg.Uploader)
	if err != nil {
		return nil, types.ErrInvalidAddress.Wrapf("invalid uploader address: %v", err)
	}

	if err := ms.Keeper.UploadProgram(goCtx, uploader, msg.ImageID, msg.Program); err != nil {
		return nil, err
	}
	return &types.MsgUploadProgramResponse{}, nil
}

// RequestProof handles a proof request and its reward reservation
func (ms msgServer) RequestProof(goCtx context.Context, msg *types.MsgRequestProof) (*types.MsgRequestProofResponse, error) {
	// Validate message
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	requester, err := sdk.AccAddressFromBech32(msg.Requester)
	if err != nil {
		return nil, types.ErrInvalidAddress.Wrapf("invalid requester address: %v", err)
	}

	overwrite, err := ms.Keeper.RequestProof(goCtx, requester, msg.ImageID, msg.Args, msg.Reward)
	if err != nil {
		return nil, err
	}
	return &types.MsgRequestProofResponse{Overwrite: overwrite}, nil
}

// StoreAndVerifyProof handles a proof submission
func (ms msgServer) StoreAndVerifyProof(goCtx context.Context, msg *types.MsgStoreAndVerifyProof) (*types.MsgStoreAndVerifyProofResponse, error) {
	// Validate message
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	prover, err := sdk.AccAddressFromBech32(msg.Prover)
	if err != nil {
		return nil, types.ErrInvalidAddress.Wrapf("invalid prover address: %v", err)
	}

	settled, err := ms.Keeper.StoreAndVerifyProof(goCtx, prover, msg.ImageID, msg.Proof)
	if err != nil {
		return nil, err
	}
	return &types.MsgStoreAndVerifyProofResponse{Settled: settled}, nil
}
