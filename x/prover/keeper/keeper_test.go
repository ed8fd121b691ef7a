package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	abci "github.com/cometbft/cometbft/abci/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	keepertest "github.com/proofmarket/prover/testutil/keeper"
	"github.com/proofmarket/prover/x/prover/receipt"
	"github.com/proofmarket/prover/x/prover/types"
)

var (
	factorsID = types.ImageID{0xfa, 0xc7}
	program   = []byte("\x00asm\x01\x00\x00\x00")
)

func newFixture(t testing.TB) *keepertest.ProverFixture {
	return keepertest.NewProverFixture(t, receipt.Verifier{})
}

func devProof(t testing.TB, id types.ImageID, journal []byte) []byte {
	bz, err := receipt.Prove(id, journal, 2).Marshal()
	require.NoError(t, err)
	return bz
}

func findEvents(ctx sdk.Context, eventType string) []types.Event {
	var out []types.Event
	for _, ev := range ctx.EventManager().Events() {
		if ev.Type != eventType {
			continue
		}
		parsed, err := types.ParseEvent(abci.Event(ev))
		if err == nil {
			out = append(out, parsed)
		}
	}
	return out
}

func requireAmount(t testing.TB, want int64, got math.Int) {
	t.Helper()
	require.True(t, math.NewInt(want).Equal(got), "expected %d, got %s", want, got)
}

func freshEvents(ctx sdk.Context) sdk.Context {
	return ctx.WithEventManager(sdk.NewEventManager())
}
