package keeper

import (
	"context"
	"fmt"

	"github.com/proofmarket/prover/x/prover/types"
)

// GetParams returns the module parameters, or the defaults if none were set.
func (k Keeper) GetParams(ctx context.Context) (types.Params, error) {
	bz := k.getStore(ctx).Get(types.ParamsKey)
	if bz == nil {
		return types.DefaultParams(), nil
	}

	var params types.Params
	if err := types.Unmarshal(bz, &params); err != nil {
		return types.Params{}, fmt.Errorf("failed to decode params: %w", err)
	}
	return params, nil
}

// SetParams validates and stores the module parameters.
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}

	bz, err := types.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	k.getStore(ctx).Set(types.ParamsKey, bz)
	return nil
}
