package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	keepertest "github.com/proofmarket/prover/testutil/keeper"
	"github.com/proofmarket/prover/x/prover/receipt"
	"github.com/proofmarket/prover/x/prover/types"
)

// TestStoreAndVerifyProof_UnknownProgram tests that any bytes fail for an unregistered image id
func TestStoreAndVerifyProof_UnknownProgram(t *testing.T) {
	f := keepertest.NewProverFixture(t, receipt.AcceptAll)
	_, prover := keepertest.TestAccount("prover")

	rapid.Check(t, func(rt *rapid.T) {
		bz := rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(rt, "proof")

		_, err := f.Keeper.StoreAndVerifyProof(f.Ctx, prover, factorsID, bz)
		require.ErrorIs(rt, err, types.ErrProgramDoesNotExist)
	})

	_, found, err := f.Keeper.GetProof(f.Ctx, factorsID)
	require.NoError(t, err)
	require.False(t, found)
}

func TestStoreAndVerifyProof_Malformed(t *testing.T) {
	f := keepertest.NewProverFixture(t, receipt.AcceptAll)
	_, uploader := keepertest.TestAccount("uploader")
	_, prover := keepertest.TestAccount("prover")
	require.NoError(t, f.Keeper.UploadProgram(f.Ctx, uploader, factorsID, program))

	for _, bz := range [][]byte{nil, []byte("garbage"), {0xa0}} {
		_, err := f.Keeper.StoreAndVerifyProof(f.Ctx, prover, factorsID, bz)
		require.ErrorIs(t, err, types.ErrProofInvalid)
	}

	params := types.DefaultParams()
	params.MaxProofLength = 4
	require.NoError(t, f.Keeper.SetParams(f.Ctx, params))
	_, err := f.Keeper.StoreAndVerifyProof(f.Ctx, prover, factorsID, devProof(t, factorsID, nil))
	require.ErrorIs(t, err, types.ErrProofInvalid)
}

// TestStoreAndVerifyProof_NotVerified tests that a rejected receipt keeps the reward in escrow
func TestStoreAndVerifyProof_NotVerified(t *testing.T) {
	f := newFixture(t)
	_, uploader := keepertest.TestAccount("uploader")
	_, requester := keepertest.TestAccount("requester")
	_, prover := keepertest.TestAccount("prover")
	f.Fund(t, requester, 1000)

	require.NoError(t, f.Keeper.UploadProgram(f.Ctx, uploader, factorsID, program))
	_, err := f.Keeper.RequestProof(f.Ctx, requester, factorsID, factorsArgs, math.NewInt(1000))
	require.NoError(t, err)

	// A valid receipt for a different program
	ctx := freshEvents(f.Ctx)
	_, err = f.Keeper.StoreAndVerifyProof(ctx, prover, factorsID, devProof(t, types.ImageID{0xee}, nil))
	require.ErrorIs(t, err, types.ErrProofNotVerified)

	require.True(t, f.Balance(prover).IsZero())
	requireAmount(t, 1000, f.EscrowBalance())
	require.Empty(t, findEvents(ctx, types.EventTypeProofVerified))

	request, _, err := f.Keeper.GetProofRequest(f.Ctx, factorsID)
	require.NoError(t, err)
	require.True(t, request.IsHeld())
}

// TestStoreAndVerifyProof_PaysOnce tests that duplicate submissions never pay twice
func TestStoreAndVerifyProof_PaysOnce(t *testing.T) {
	f := newFixture(t)
	_, uploader := keepertest.TestAccount("uploader")
	_, requester := keepertest.TestAccount("requester")
	_, prover := keepertest.TestAccount("prover")
	_, latecomer := keepertest.TestAccount("latecomer")
	f.Fund(t, requester, 1000)

	require.NoError(t, f.Keeper.UploadProgram(f.Ctx, uploader, factorsID, program))
	_, err := f.Keeper.RequestProof(f.Ctx, requester, factorsID, factorsArgs, math.NewInt(1000))
	require.NoError(t, err)

	journal := []byte{0x87, 0x01, 0x00, 0x00}
	ctx := freshEvents(f.Ctx.WithBlockHeight(5))
	settled, err := f.Keeper.StoreAndVerifyProof(ctx, prover, factorsID, devProof(t, factorsID, journal))
	require.NoError(t, err)
	require.True(t, settled)

	requireAmount(t, 1000, f.Balance(prover))
	require.True(t, f.EscrowBalance().IsZero())

	request, found, err := f.Keeper.GetProofRequest(f.Ctx, factorsID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, types.RequestStatusSettled, request.Status)
	require.Equal(t, prover, request.Prover)
	require.Equal(t, int64(5), request.SettledHeight)

	events := findEvents(ctx, types.EventTypeProofVerified)
	require.Len(t, events, 1)
	verified := events[0].(types.ProofVerifiedEvent)
	require.True(t, verified.Settled)
	require.Equal(t, prover.String(), verified.Prover)
	require.Equal(t, 2, verified.Segments)

	// Same proof again, and from another prover
	for _, addr := range []sdk.AccAddress{prover, latecomer} {
		ctx := freshEvents(f.Ctx)
		settled, err := f.Keeper.StoreAndVerifyProof(ctx, addr, factorsID, devProof(t, factorsID, journal))
		require.NoError(t, err)
		require.False(t, settled)

		events := findEvents(ctx, types.EventTypeProofVerified)
		require.Len(t, events, 1)
		require.False(t, events[0].(types.ProofVerifiedEvent).Settled)
	}

	requireAmount(t, 1000, f.Balance(prover))
	require.True(t, f.Balance(latecomer).IsZero())
	require.True(t, f.EscrowBalance().IsZero())

	// The last accepted proof is kept
	record, found, err := f.Keeper.GetProof(f.Ctx, factorsID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, latecomer.String(), record.Prover)
	require.Equal(t, journal, record.Proof.Journal)
}

func TestStoreAndVerifyProof_NoRequest(t *testing.T) {
	f := newFixture(t)
	_, uploader := keepertest.TestAccount("uploader")
	_, prover := keepertest.TestAccount("prover")
	require.NoError(t, f.Keeper.UploadProgram(f.Ctx, uploader, factorsID, program))

	settled, err := f.Keeper.StoreAndVerifyProof(f.Ctx, prover, factorsID, devProof(t, factorsID, nil))
	require.NoError(t, err)
	require.False(t, settled)

	_, found, err := f.Keeper.GetProof(f.Ctx, factorsID)
	require.NoError(t, err)
	require.True(t, found)
}

// TestRequestProof_AfterSettlement tests that a settled request can be replaced by a new round
func TestRequestProof_AfterSettlement(t *testing.T) {
	f := newFixture(t)
	_, uploader := keepertest.TestAccount("uploader")
	_, requester := keepertest.TestAccount("requester")
	_, prover := keepertest.TestAccount("prover")
	f.Fund(t, requester, 2000)

	require.NoError(t, f.Keeper.UploadProgram(f.Ctx, uploader, factorsID, program))
	_, err := f.Keeper.RequestProof(f.Ctx, requester, factorsID, factorsArgs, math.NewInt(1000))
	require.NoError(t, err)
	_, err = f.Keeper.StoreAndVerifyProof(f.Ctx, prover, factorsID, devProof(t, factorsID, nil))
	require.NoError(t, err)

	overwrite, err := f.Keeper.RequestProof(f.Ctx, requester, factorsID, factorsArgs, math.NewInt(1000))
	require.NoError(t, err)
	require.True(t, overwrite)

	// The settled reward is not released a second time
	require.True(t, f.Balance(requester).IsZero())
	requireAmount(t, 1000, f.EscrowBalance())

	settled, err := f.Keeper.StoreAndVerifyProof(f.Ctx, prover, factorsID, devProof(t, factorsID, nil))
	require.NoError(t, err)
	require.True(t, settled)
	requireAmount(t, 2000, f.Balance(prover))
}
