package ledger_test

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/proofmarket/prover/pkg/chain"
	keepertest "github.com/proofmarket/prover/testutil/keeper"
	"github.com/proofmarket/prover/testutil/ledger"
	"github.com/proofmarket/prover/x/prover/receipt"
	"github.com/proofmarket/prover/x/prover/types"
)

func TestClientAgainstLedger(t *testing.T) {
	l := ledger.New(t, receipt.Verifier{})
	priv, requester := keepertest.TestAccount("requester")
	l.Fixture().Fund(t, requester, 5000)

	client := chain.NewClient(l, chain.NewSigner(priv), keepertest.TestChainID, log.NewNopLogger())
	ctx := context.Background()
	id := types.ImageID{0xfa, 0xc7}

	_, err := client.Submit(ctx, &types.MsgUploadProgram{Uploader: requester.String(), ImageID: id, Program: []byte("wasm")})
	require.NoError(t, err)

	_, err = client.Submit(ctx, &types.MsgUploadProgram{Uploader: requester.String(), ImageID: id, Program: []byte("other")})
	require.ErrorIs(t, err, types.ErrProgramAlreadyExists)

	res, err := client.Submit(ctx, &types.MsgRequestProof{Requester: requester.String(), ImageID: id, Args: types.Args{{17}, {23}}, Reward: math.NewInt(1000)})
	require.NoError(t, err)
	require.Equal(t, int64(3), res.Height)

	program, err := client.Fetch(ctx, types.ProgramKey(id))
	require.NoError(t, err)
	require.Equal(t, []byte("wasm"), program)

	bz, err := client.Fetch(ctx, types.ProofRequestKey(id))
	require.NoError(t, err)
	var request types.ProofRequest
	require.NoError(t, types.Unmarshal(bz, &request))
	require.Equal(t, types.RequestStatusRequested, request.Status)
	require.True(t, request.Reward.Amount.Equal(math.NewInt(1000)))

	// The failed upload still consumed its sequence
	seq, err := client.Fetch(ctx, types.SequenceKey(requester))
	require.NoError(t, err)
	require.Equal(t, uint64(3), types.DecodeSequence(seq))

	l.FailBroadcasts(1)
	_, err = client.Submit(ctx, &types.MsgUploadProgram{Uploader: requester.String(), ImageID: types.ImageID{1}, Program: []byte("x")})
	require.ErrorIs(t, err, types.ErrTransportFailure)
}

func TestFeedAgainstLedger(t *testing.T) {
	l := ledger.New(t, receipt.Verifier{})
	priv, requester := keepertest.TestAccount("requester")
	l.Fixture().Fund(t, requester, 5000)

	client := chain.NewClient(l, chain.NewSigner(priv), keepertest.TestChainID, log.NewNopLogger())
	ctx := context.Background()
	id := types.ImageID{0x01}

	_, err := client.Submit(ctx, &types.MsgUploadProgram{Uploader: requester.String(), ImageID: id, Program: []byte("wasm")})
	require.NoError(t, err)
	_, err = client.Submit(ctx, &types.MsgRequestProof{Requester: requester.String(), ImageID: types.ImageID{0x02}, Reward: math.NewInt(10)})
	require.NoError(t, err)

	feed := chain.NewFeed(l, 1, chain.FeedConfig{PollInterval: time.Millisecond, RetryBase: time.Millisecond, MaxRetries: 2}, log.NewNopLogger())

	block, err := feed.Next(ctx)
	require.NoError(t, err)
	require.Len(t, block.Events, 1)
	require.IsType(t, types.ProgramUploadedEvent{}, block.Events[0])

	block, err = feed.Next(ctx)
	require.NoError(t, err)
	require.Len(t, block.Events, 1)
	requested, ok := block.Events[0].(types.ProofRequestedEvent)
	require.True(t, ok)
	require.Equal(t, types.ImageID{0x02}, requested.ImageID)
	require.Equal(t, requester.String(), requested.Requester)

	l.SetDown(true)
	_, err = feed.Next(ctx)
	require.ErrorIs(t, err, types.ErrTransportFailure)
}
