package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	keepertest "github.com/proofmarket/prover/testutil/keeper"
	"github.com/proofmarket/prover/x/prover/keeper"
	"github.com/proofmarket/prover/x/prover/types"
)

func TestEscrowBalanceInvariant_Broken(t *testing.T) {
	f := newFixture(t)
	_, requester := keepertest.TestAccount("requester")
	f.Fund(t, requester, 1000)

	_, err := f.Keeper.RequestProof(f.Ctx, requester, factorsID, factorsArgs, math.NewInt(600))
	require.NoError(t, err)

	_, broken := keeper.AllInvariants(*f.Keeper)(f.Ctx)
	require.False(t, broken)

	// Coins sent to the module outside of a request break the accounting
	require.NoError(t, f.BankKeeper.SendCoinsFromAccountToModule(f.Ctx, requester, types.ModuleName,
		sdk.NewCoins(sdk.NewCoin(sdk.DefaultBondDenom, math.NewInt(1)))))

	msg, broken := keeper.EscrowBalanceInvariant(*f.Keeper)(f.Ctx)
	require.True(t, broken)
	require.Contains(t, msg, "held rewards 600")
}

func TestProofProgramInvariant_Broken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.Keeper.SetProof(f.Ctx, factorsID, types.ProofRecord{}))

	_, broken := keeper.ProofProgramInvariant(*f.Keeper)(f.Ctx)
	require.True(t, broken)
}

// TestEscrowConservation drives random operation sequences and checks that
// rewards are never created, lost or paid twice.
func TestEscrowConservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)

		names := []string{"a", "b", "c"}
		accounts := make([]sdk.AccAddress, len(names))
		for i, name := range names {
			_, accounts[i] = keepertest.TestAccount(name)
			f.Fund(t, accounts[i], 1000)
		}
		ids := []types.ImageID{{1}, {2}}
		total := math.NewInt(int64(1000 * len(names)))

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			who := accounts[rapid.IntRange(0, len(accounts)-1).Draw(rt, "who")]
			id := ids[rapid.IntRange(0, len(ids)-1).Draw(rt, "id")]

			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				err := f.Keeper.UploadProgram(f.Ctx, who, id, program)
				if err != nil {
					require.ErrorIs(rt, err, types.ErrProgramAlreadyExists)
				}
			case 1:
				reward := math.NewInt(rapid.Int64Range(0, 1200).Draw(rt, "reward"))
				_, err := f.Keeper.RequestProof(f.Ctx, who, id, factorsArgs, reward)
				if err != nil {
					require.ErrorIs(rt, err, types.ErrInsufficientBalance)
				}
			case 2:
				bz := devProof(t, id, []byte{byte(i)})
				_, err := f.Keeper.StoreAndVerifyProof(f.Ctx, who, id, bz)
				if err != nil {
					require.ErrorIs(rt, err, types.ErrProgramDoesNotExist)
				}
			}

			msg, broken := keeper.AllInvariants(*f.Keeper)(f.Ctx)
			require.False(rt, broken, msg)

			sum := f.EscrowBalance()
			for _, acc := range accounts {
				sum = sum.Add(f.Balance(acc))
			}
			require.True(rt, total.Equal(sum), "supply changed: %s != %s", sum, total)
		}
	})
}
