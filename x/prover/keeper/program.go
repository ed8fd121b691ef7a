package keeper

import (
	"context"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofmarket/prover/x/prover/types"
)

// UploadProgram registers program under imageID. Programs are immutable: a
// second upload under the same id fails with ErrProgramAlreadyExists and
// leaves the stored program untouched.
func (k Keeper) UploadProgram(ctx context.Context, uploader sdk.AccAddress, imageID types.ImageID, program []byte) error {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	params, err := k.GetParams(ctx)
	if err != nil {
		return err
	}
	if len(program) == 0 {
		return types.ErrValidationFailed.Wrap("program is empty")
	}
	if uint64(len(program)) > params.MaxProgramLength {
		return types.ErrProgramTooLarge.Wrapf("%d bytes, max %d", len(program), params.MaxProgramLength)
	}

	store := k.getStore(ctx)
	key := types.ProgramKey(imageID)
	if store.Has(key) {
		return types.ErrProgramAlreadyExists.Wrapf("image id %s", imageID)
	}
	store.Set(key, program)

	k.metrics.ProgramsUploaded.Inc()
	k.Logger(ctx).Info("program uploaded", "image_id", imageID.String(), "size", len(program), "uploader", uploader.String())

	sdkCtx.EventManager().EmitEvent(types.ProgramUploadedEvent{
		ImageID:     imageID,
		Uploader:    uploader.String(),
		ProgramSize: len(program),
	}.ToSDKEvent())

	return nil
}

// GetProgram returns the program registered under imageID.
func (k Keeper) GetProgram(ctx context.Context, imageID types.ImageID) ([]byte, bool) {
	bz := k.getStore(ctx).Get(types.ProgramKey(imageID))
	if bz == nil {
		return nil, false
	}
	return bz, true
}

// HasProgram reports whether a program is registered under imageID.
func (k Keeper) HasProgram(ctx context.Context, imageID types.ImageID) bool {
	return k.getStore(ctx).Has(types.ProgramKey(imageID))
}

// setProgram stores a program without checks. Used by genesis import.
func (k Keeper) setProgram(ctx context.Context, imageID types.ImageID, program []byte) {
	k.getStore(ctx).Set(types.ProgramKey(imageID), program)
}

// IteratePrograms iterates over all registered programs in image id order.
func (k Keeper) IteratePrograms(ctx context.Context, cb func(imageID types.ImageID, program []byte) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), types.ProgramKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		imageID, err := types.ImageIDFromKey(iterator.Key())
		if err != nil {
			return err
		}
		stop, err := cb(imageID, iterator.Value())
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}
