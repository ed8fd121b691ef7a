package keeper

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofmarket/prover/x/prover/types"
)

// RegisterInvariants registers all prover module invariants
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "escrow-balance",
		EscrowBalanceInvariant(k))
	ir.RegisterRoute(types.ModuleName, "proof-program",
		ProofProgramInvariant(k))
}

// AllInvariants runs all invariants of the prover module
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		res, stop := EscrowBalanceInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		return ProofProgramInvariant(k)(ctx)
	}
}

// EscrowBalanceInvariant checks that the module account holds exactly the sum
// of all rewards still reserved for unsettled requests
func EscrowBalanceInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		held := sdk.NewCoins()

		err := k.IterateProofRequests(ctx, func(_ types.ImageID, request types.ProofRequest) (bool, error) {
			if request.IsHeld() && !request.Reward.IsZero() {
				held = held.Add(request.Reward)
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(
				types.ModuleName, "escrow-balance",
				fmt.Sprintf("error iterating requests: %v", err),
			), true
		}

		moduleAddr := k.ModuleAddress()
		broken := false
		msg := ""
		denoms := map[string]bool{}
		for _, coin := range held {
			denoms[coin.Denom] = true
		}
		params, err := k.GetParams(ctx)
		if err == nil {
			denoms[params.RewardDenom] = true
		}

		for denom := range denoms {
			want := held.AmountOf(denom)
			got := k.bankKeeper.GetBalance(ctx, moduleAddr, denom).Amount
			if !got.Equal(want) {
				broken = true
				msg += fmt.Sprintf("\tdenom %s: module balance %s, held rewards %s\n", denom, got, want)
			}
		}

		return sdk.FormatInvariant(
			types.ModuleName, "escrow-balance",
			fmt.Sprintf("escrow balance matches held rewards: %t\n%s", !broken, msg),
		), broken
	}
}

// ProofProgramInvariant checks that every stored proof has a registered program
func ProofProgramInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var (
			broken  bool
			missing int
		)

		err := k.IterateProofs(ctx, func(id types.ImageID, _ types.ProofRecord) (bool, error) {
			if !k.HasProgram(ctx, id) {
				broken = true
				missing++
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(
				types.ModuleName, "proof-program",
				fmt.Sprintf("error iterating proofs: %v", err),
			), true
		}

		return sdk.FormatInvariant(
			types.ModuleName, "proof-program",
			fmt.Sprintf("proofs without program: %d", missing),
		), broken
	}
}
