package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofmarket/prover/x/prover/types"
)

// RequestProof posts a request for a proof of the program under imageID run
// on args, reserving reward from the requester. The program does not have to
// be registered yet.
//
// A request already stored under imageID is overwritten. If its reward is
// still held it is released back to its requester first, so an overwrite never
// strands escrowed funds. It returns whether an earlier request was replaced.
func (k Keeper) RequestProof(ctx context.Context, requester sdk.AccAddress, imageID types.ImageID, args types.Args, reward math.Int) (bool, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	// Validate inputs
	if err := types.ValidateReward(reward); err != nil {
		return false, err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return false, err
	}
	if uint64(args.WordCount()) > params.MaxArgsLength {
		return false, types.ErrArgsTooLong.Wrapf("%d words, max %d", args.WordCount(), params.MaxArgsLength)
	}

	coin := sdk.NewCoin(params.RewardDenom, reward)

	previous, overwrite, err := k.GetProofRequest(ctx, imageID)
	if err != nil {
		return false, err
	}
	releasing := overwrite && previous.IsHeld()

	// Check funds before touching any state. A requester replacing its own
	// held request may spend the reward it gets back.
	available := k.spendable(ctx, requester, coin.Denom)
	if releasing && previous.Requester.Equals(requester) && previous.Reward.Denom == coin.Denom {
		available = available.Add(previous.Reward.Amount)
	}
	if available.LT(coin.Amount) {
		return false, types.ErrInsufficientBalance.Wrapf("requester %s can spend %s%s, reward is %s", requester, available, coin.Denom, coin)
	}

	if releasing {
		if err := k.releaseReward(ctx, imageID, previous.Requester, previous.Reward); err != nil {
			return false, err
		}
	}

	// The reservation must land before the request becomes visible
	if err := k.reserveReward(ctx, imageID, requester, coin); err != nil {
		return false, err
	}

	request := types.ProofRequest{
		Requester:       requester,
		Reward:          coin,
		Args:            args,
		Status:          types.RequestStatusRequested,
		RequestedHeight: sdkCtx.BlockHeight(),
	}
	if err := k.SetProofRequest(ctx, imageID, request); err != nil {
		return false, err
	}

	k.metrics.ProofRequests.WithLabelValues(fmt.Sprintf("%t", overwrite)).Inc()
	k.Logger(ctx).Info("proof requested",
		"image_id", imageID.String(),
		"requester", requester.String(),
		"reward", coin.String(),
		"overwrite", overwrite,
	)

	sdkCtx.EventManager().EmitEvent(types.ProofRequestedEvent{
		ImageID:   imageID,
		Args:      args,
		Reward:    coin,
		Requester: requester.String(),
		Overwrite: overwrite,
	}.ToSDKEvent())

	return overwrite, nil
}

// GetProofRequest returns the request stored under imageID.
func (k Keeper) GetProofRequest(ctx context.Context, imageID types.ImageID) (types.ProofRequest, bool, error) {
	bz := k.getStore(ctx).Get(types.ProofRequestKey(imageID))
	if bz == nil {
		return types.ProofRequest{}, false, nil
	}

	var request types.ProofRequest
	if err := types.Unmarshal(bz, &request); err != nil {
		return types.ProofRequest{}, false, fmt.Errorf("failed to decode proof request %s: %w", imageID, err)
	}
	return request, true, nil
}

// SetProofRequest stores request under imageID.
func (k Keeper) SetProofRequest(ctx context.Context, imageID types.ImageID, request types.ProofRequest) error {
	bz, err := types.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode proof request: %w", err)
	}
	k.getStore(ctx).Set(types.ProofRequestKey(imageID), bz)
	return nil
}

// IterateProofRequests iterates over all stored requests in image id order.
func (k Keeper) IterateProofRequests(ctx context.Context, cb func(imageID types.ImageID, request types.ProofRequest) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), types.ProofRequestKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		imageID, err := types.ImageIDFromKey(iterator.Key())
		if err != nil {
			return err
		}

		var request types.ProofRequest
		if err := types.Unmarshal(iterator.Value(), &request); err != nil {
			return fmt.Errorf("failed to decode proof request %s: %w", imageID, err)
		}

		stop, err := cb(imageID, request)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}
