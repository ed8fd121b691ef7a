package keeper

import (
	"context"
	"errors"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	"github.com/proofmarket/prover/x/prover/types"
)

// Rewards are escrowed in the prover module account. A reservation moves the
// reward from the requester into the module account, a repatriation pays it
// to the prover that settled the request, and a release returns it to the
// requester when the request is overwritten. Zero rewards never touch the bank.

// spendable returns the amount of denom addr can spend.
func (k Keeper) spendable(ctx context.Context, addr sdk.AccAddress, denom string) math.Int {
	return k.bankKeeper.SpendableCoins(ctx, addr).AmountOf(denom)
}

// reserveReward moves reward from requester into escrow.
func (k Keeper) reserveReward(ctx context.Context, imageID types.ImageID, requester sdk.AccAddress, reward sdk.Coin) error {
	if reward.IsZero() {
		return nil
	}

	if err := k.bankKeeper.SendCoinsFromAccountToModule(ctx, requester, types.ModuleName, sdk.NewCoins(reward)); err != nil {
		if errors.Is(err, sdkerrors.ErrInsufficientFunds) {
			return types.ErrInsufficientBalance.Wrap(err.Error())
		}
		return types.ErrEscrowFailed.Wrapf("failed to reserve reward: %s", err)
	}

	k.metrics.EscrowReserved.Add(amountFloat(reward.Amount))
	k.emitEscrowEvent(ctx, types.EventTypeEscrowReserved, imageID, requester.String(), types.ModuleName, reward)
	return nil
}

// repatriateReward pays a held reward out of escrow to prover.
func (k Keeper) repatriateReward(ctx context.Context, imageID types.ImageID, prover sdk.AccAddress, reward sdk.Coin) error {
	if reward.IsZero() {
		return nil
	}

	if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, prover, sdk.NewCoins(reward)); err != nil {
		return types.ErrEscrowFailed.Wrapf("failed to repatriate reward: %s", err)
	}

	k.metrics.RewardsPaid.Add(amountFloat(reward.Amount))
	k.emitEscrowEvent(ctx, types.EventTypeEscrowRepatriated, imageID, types.ModuleName, prover.String(), reward)
	return nil
}

// releaseReward returns a held reward to its requester.
func (k Keeper) releaseReward(ctx context.Context, imageID types.ImageID, requester sdk.AccAddress, reward sdk.Coin) error {
	if reward.IsZero() {
		return nil
	}

	if err := k.bankKeeper.SendCoinsFromModuleToAccount(ctx, types.ModuleName, requester, sdk.NewCoins(reward)); err != nil {
		return types.ErrEscrowFailed.Wrapf("failed to release reward: %s", err)
	}

	k.metrics.EscrowReleased.Add(amountFloat(reward.Amount))
	k.emitEscrowEvent(ctx, types.EventTypeEscrowReleased, imageID, types.ModuleName, requester.String(), reward)
	return nil
}

func (k Keeper) emitEscrowEvent(ctx context.Context, eventType string, imageID types.ImageID, from, to string, amount sdk.Coin) {
	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			eventType,
			sdk.NewAttribute(types.AttributeKeyImageID, imageID.String()),
			sdk.NewAttribute(types.AttributeKeyFrom, from),
			sdk.NewAttribute(types.AttributeKeyTo, to),
			sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
		),
	)
}

// amountFloat converts an amount for metrics, where precision loss is acceptable.
func amountFloat(amount math.Int) float64 {
	f, _ := amount.BigInt().Float64()
	return f
}

// fundGenesisEscrow mints the rewards held by genesis requests into the
// module account, topping up whatever balance it already has. A module
// balance above the held rewards is rejected, as no request could ever
// release the excess.
func (k Keeper) fundGenesisEscrow(ctx context.Context, requests []types.GenesisRequest) error {
	held := sdk.NewCoins()
	for _, r := range requests {
		if r.Request.IsHeld() && !r.Request.Reward.IsZero() {
			held = held.Add(r.Request.Reward)
		}
	}

	moduleAddr := k.ModuleAddress()
	missing := sdk.NewCoins()
	for _, coin := range held {
		balance := k.bankKeeper.GetBalance(ctx, moduleAddr, coin.Denom)
		if balance.Amount.GT(coin.Amount) {
			return types.ErrInvalidGenesis.Wrapf("escrow holds %s but requests hold only %s", balance, coin)
		}
		if diff := coin.Amount.Sub(balance.Amount); diff.IsPositive() {
			missing = missing.Add(sdk.NewCoin(coin.Denom, diff))
		}
	}
	if missing.IsZero() {
		return nil
	}

	if err := k.bankKeeper.MintCoins(ctx, types.ModuleName, missing); err != nil {
		return errorsmod.Wrapf(types.ErrEscrowFailed, "failed to fund genesis escrow: %v", err)
	}
	k.Logger(ctx).Info("funded escrow from genesis", "amount", missing.String())
	return nil
}
