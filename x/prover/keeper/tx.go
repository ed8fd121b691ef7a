package keeper

import (
	errorsmod "cosmossdk.io/errors"
	abci "github.com/cometbft/cometbft/abci/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofmarket/prover/x/prover/types"
)

// DeliverTx executes a signed prover transaction against ctx and returns its
// ABCI result. The signer's sequence is consumed once the signature checks
// out, even if the message then fails, so a failed tx cannot be replayed. The
// message itself runs in a cache context: its state writes and events are
// committed only if it succeeds.
func (k Keeper) DeliverTx(ctx sdk.Context, txBytes []byte) abci.ExecTxResult {
	ctx = ctx.WithEventManager(sdk.NewEventManager())

	data, err := k.deliverTx(ctx, txBytes)
	if err != nil {
		k.metrics.TxsFailed.WithLabelValues(failureLabel(err)).Inc()
		k.Logger(ctx).Debug("tx failed", "error", err.Error())
		return resultFromError(err)
	}

	return abci.ExecTxResult{
		Code:   0,
		Data:   data,
		Events: ctx.EventManager().ABCIEvents(),
	}
}

// CheckTx runs the stateless checks of a signed prover transaction plus a
// sequence check against ctx, without consuming the sequence or running the
// message.
func (k Keeper) CheckTx(ctx sdk.Context, txBytes []byte) error {
	tx, signer, msg, err := k.authenticateTx(ctx, txBytes)
	if err != nil {
		return err
	}
	if err := msg.ValidateBasic(); err != nil {
		return err
	}
	if last := k.GetSequence(ctx, signer); tx.Sequence <= last {
		return types.ErrInvalidSequence.Wrapf("sequence %d must exceed %d for %s", tx.Sequence, last, signer)
	}
	return nil
}

func (k Keeper) deliverTx(ctx sdk.Context, txBytes []byte) ([]byte, error) {
	tx, signer, msg, err := k.authenticateTx(ctx, txBytes)
	if err != nil {
		return nil, err
	}

	if err := k.consumeSequence(ctx, signer, tx.Sequence); err != nil {
		return nil, err
	}

	cacheCtx, write := ctx.CacheContext()
	resp, err := k.routeMsg(cacheCtx, msg)
	if err != nil {
		return nil, err
	}
	write()

	return types.Marshal(resp)
}

// authenticateTx decodes txBytes and checks its chain id and signature.
func (k Keeper) authenticateTx(ctx sdk.Context, txBytes []byte) (types.Tx, sdk.AccAddress, types.Msg, error) {
	tx, err := types.DecodeTx(txBytes)
	if err != nil {
		return types.Tx{}, nil, nil, err
	}
	if tx.ChainID != ctx.ChainID() {
		return types.Tx{}, nil, nil, types.ErrWrongChainID.Wrapf("tx chain id %q, expected %q", tx.ChainID, ctx.ChainID())
	}

	signer, err := tx.Signer()
	if err != nil {
		return types.Tx{}, nil, nil, err
	}

	msg, err := tx.Body.GetMsg()
	if err != nil {
		return types.Tx{}, nil, nil, err
	}
	if msg.GetSigner() != signer.String() {
		return types.Tx{}, nil, nil, types.ErrUnauthorized.Wrapf("message signer %s, tx signed by %s", msg.GetSigner(), signer)
	}
	return tx, signer, msg, nil
}

func (k Keeper) routeMsg(ctx sdk.Context, msg types.Msg) (interface{}, error) {
	ms := NewMsgServerImpl(k)

	switch m := msg.(type) {
	case *types.MsgUploadProgram:
		return ms.UploadProgram(ctx, m)
	case *types.MsgRequestProof:
		return ms.RequestProof(ctx, m)
	case *types.MsgStoreAndVerifyProof:
		return ms.StoreAndVerifyProof(ctx, m)
	default:
		return nil, types.ErrInvalidTx.Wrapf("unrecognized message type %T", msg)
	}
}

func resultFromError(err error) abci.ExecTxResult {
	codespace, code, log := errorsmod.ABCIInfo(err, false)
	return abci.ExecTxResult{
		Codespace: codespace,
		Code:      code,
		Log:       log,
	}
}

func failureLabel(err error) string {
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	if codespace != types.ModuleName {
		return "internal"
	}
	for _, sentinel := range []*errorsmod.Error{
		types.ErrProgramAlreadyExists,
		types.ErrProgramDoesNotExist,
		types.ErrProofInvalid,
		types.ErrProofNotVerified,
		types.ErrInsufficientBalance,
		types.ErrInvalidSequence,
		types.ErrInvalidSignature,
	} {
		if sentinel.ABCICode() == code {
			return sentinel.Error()
		}
	}
	return "other"
}
