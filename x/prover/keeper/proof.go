package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofmarket/prover/x/prover/types"
)

// StoreAndVerifyProof accepts proofBytes as a receipt for the program under
// imageID. The program must exist, the bytes must decode, and the receipt
// verifier must accept the proof. On success a held reward for imageID is paid
// to prover and the request is marked settled, and the proof is stored,
// replacing any earlier proof. It returns whether a reward was settled.
func (k Keeper) StoreAndVerifyProof(ctx context.Context, prover sdk.AccAddress, imageID types.ImageID, proofBytes []byte) (bool, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	// A proof for an unknown program fails regardless of its content
	if !k.HasProgram(ctx, imageID) {
		k.metrics.ProofsRejected.WithLabelValues("no_program").Inc()
		return false, types.ErrProgramDoesNotExist.Wrapf("image id %s", imageID)
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return false, err
	}
	if uint64(len(proofBytes)) > params.MaxProofLength {
		k.metrics.ProofsRejected.WithLabelValues("too_large").Inc()
		return false, types.ErrProofInvalid.Wrapf("%d bytes, max %d", len(proofBytes), params.MaxProofLength)
	}

	proof, err := types.UnmarshalProof(proofBytes)
	if err != nil {
		k.metrics.ProofsRejected.WithLabelValues("malformed").Inc()
		return false, err
	}
	if err := proof.ValidateBasic(); err != nil {
		k.metrics.ProofsRejected.WithLabelValues("malformed").Inc()
		return false, err
	}

	if !k.verifier.Verify(proof, imageID) {
		k.metrics.ProofsRejected.WithLabelValues("not_verified").Inc()
		return false, types.ErrProofNotVerified.Wrapf("image id %s", imageID)
	}

	settled := false
	reward := sdk.NewCoin(params.RewardDenom, math.ZeroInt())

	request, found, err := k.GetProofRequest(ctx, imageID)
	if err != nil {
		return false, err
	}
	if found && request.IsHeld() {
		if err := k.repatriateReward(ctx, imageID, prover, request.Reward); err != nil {
			return false, err
		}

		request.Status = types.RequestStatusSettled
		request.Prover = prover
		request.SettledHeight = sdkCtx.BlockHeight()
		if err := k.SetProofRequest(ctx, imageID, request); err != nil {
			return false, err
		}

		settled = true
		reward = request.Reward
	}

	record := types.ProofRecord{
		Proof:  proof,
		Prover: prover.String(),
		Height: sdkCtx.BlockHeight(),
	}
	if err := k.SetProof(ctx, imageID, record); err != nil {
		return false, err
	}

	k.metrics.ProofsVerified.WithLabelValues(fmt.Sprintf("%t", settled)).Inc()
	k.Logger(ctx).Info("proof verified",
		"image_id", imageID.String(),
		"prover", prover.String(),
		"segments", len(proof.Segments),
		"settled", settled,
	)

	sdkCtx.EventManager().EmitEvent(types.ProofVerifiedEvent{
		ImageID:  imageID,
		Prover:   prover.String(),
		Segments: len(proof.Segments),
		Settled:  settled,
		Reward:   reward,
	}.ToSDKEvent())

	return settled, nil
}

// GetProof returns the last verified proof stored under imageID.
func (k Keeper) GetProof(ctx context.Context, imageID types.ImageID) (types.ProofRecord, bool, error) {
	bz := k.getStore(ctx).Get(types.ProofKey(imageID))
	if bz == nil {
		return types.ProofRecord{}, false, nil
	}

	var record types.ProofRecord
	if err := types.Unmarshal(bz, &record); err != nil {
		return types.ProofRecord{}, false, fmt.Errorf("failed to decode proof %s: %w", imageID, err)
	}
	return record, true, nil
}

// SetProof stores record under imageID.
func (k Keeper) SetProof(ctx context.Context, imageID types.ImageID, record types.ProofRecord) error {
	bz, err := types.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode proof: %w", err)
	}
	k.getStore(ctx).Set(types.ProofKey(imageID), bz)
	return nil
}

// IterateProofs iterates over all stored proofs in image id order.
func (k Keeper) IterateProofs(ctx context.Context, cb func(imageID types.ImageID, record types.ProofRecord) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), types.ProofKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		imageID, err := types.ImageIDFromKey(iterator.Key())
		if err != nil {
			return err
		}

		var record types.ProofRecord
		if err := types.Unmarshal(iterator.Value(), &record); err != nil {
			return fmt.Errorf("failed to decode proof %s: %w", imageID, err)
		}

		stop, err := cb(imageID, record)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}
