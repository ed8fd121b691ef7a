package chain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/proofmarket/prover/pkg/chain"
	"github.com/proofmarket/prover/x/prover/types"
)

const chainID = "prover-test-1"

var errUnavailable = errors.New("connection refused")

// fakeRPC serves canned node responses.
type fakeRPC struct {
	mu sync.Mutex

	tip        int64
	blocks     map[int64]*coretypes.ResultBlockResults
	store      map[string][]byte
	failStatus int
	failBlocks int

	broadcast func(tx types.Tx) (*coretypes.ResultBroadcastTxCommit, error)
	txs       []types.Tx
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		blocks: map[int64]*coretypes.ResultBlockResults{},
		store:  map[string][]byte{},
	}
}

func (r *fakeRPC) Status(context.Context) (*coretypes.ResultStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failStatus > 0 {
		r.failStatus--
		return nil, errUnavailable
	}
	return &coretypes.ResultStatus{SyncInfo: coretypes.SyncInfo{LatestBlockHeight: r.tip}}, nil
}

func (r *fakeRPC) BlockResults(_ context.Context, height *int64) (*coretypes.ResultBlockResults, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failBlocks > 0 {
		r.failBlocks--
		return nil, errUnavailable
	}
	if res, ok := r.blocks[*height]; ok {
		return res, nil
	}
	return &coretypes.ResultBlockResults{Height: *height}, nil
}

func (r *fakeRPC) ABCIQuery(_ context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if path != types.QueryStorePath {
		return &coretypes.ResultABCIQuery{Response: abci.ResponseQuery{Code: 6, Codespace: "sdk", Log: "unknown query path"}}, nil
	}
	return &coretypes.ResultABCIQuery{Response: abci.ResponseQuery{Value: r.store[string(data)]}}, nil
}

func (r *fakeRPC) BroadcastTxCommit(_ context.Context, txBytes cmttypes.Tx) (*coretypes.ResultBroadcastTxCommit, error) {
	tx, err := types.DecodeTx(txBytes)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.txs = append(r.txs, tx)
	r.mu.Unlock()
	return r.broadcast(tx)
}

func (r *fakeRPC) addBlock(height int64, txs []*abci.ExecTxResult, finalize ...abci.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[height] = &coretypes.ResultBlockResults{Height: height, TxsResults: txs, FinalizeBlockEvents: finalize}
	if height > r.tip {
		r.tip = height
	}
}

func testFeedConfig() chain.FeedConfig {
	return chain.FeedConfig{PollInterval: time.Millisecond, RetryBase: time.Millisecond, MaxRetries: 3}
}

func requested(id types.ImageID) abci.Event {
	return abci.Event(types.ProofRequestedEvent{
		ImageID:   id,
		Args:      types.Args{{17}, {23}},
		Reward:    sdk.NewCoin(sdk.DefaultBondDenom, math.NewInt(1000)),
		Requester: sdk.AccAddress("requester___________").String(),
	}.ToSDKEvent())
}

func committed(height int64, events ...abci.Event) (*coretypes.ResultBroadcastTxCommit, error) {
	return &coretypes.ResultBroadcastTxCommit{
		Height:   height,
		TxResult: abci.ExecTxResult{Events: events},
	}, nil
}

func rejected(err interface {
	Codespace() string
	ABCICode() uint32
}) (*coretypes.ResultBroadcastTxCommit, error) {
	return &coretypes.ResultBroadcastTxCommit{
		TxResult: abci.ExecTxResult{Codespace: err.Codespace(), Code: err.ABCICode(), Log: "rejected"},
	}, nil
}

func TestFeed_DecodesSuccessfulTxEvents(t *testing.T) {
	rpc := newFakeRPC()
	a, b, c := types.ImageID{1}, types.ImageID{2}, types.ImageID{3}
	rpc.addBlock(1, []*abci.ExecTxResult{
		{Events: []abci.Event{{Type: "transfer"}, requested(a)}},
		{Code: 5, Codespace: types.ModuleName, Events: []abci.Event{requested(b)}},
	}, requested(c))
	rpc.addBlock(2, nil)

	feed := chain.NewFeed(rpc, 1, testFeedConfig(), log.NewNopLogger())

	block, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), block.Height)
	require.Len(t, block.Events, 2)
	require.Equal(t, a, block.Events[0].GetImageID())
	require.Equal(t, c, block.Events[1].GetImageID())

	block, err = feed.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), block.Height)
	require.Empty(t, block.Events)
	require.Equal(t, int64(3), feed.Height())
}

func TestFeed_WaitsForNewBlocks(t *testing.T) {
	rpc := newFakeRPC()
	rpc.addBlock(4, nil)

	feed := chain.NewFeed(rpc, 0, testFeedConfig(), log.NewNopLogger())

	go func() {
		time.Sleep(20 * time.Millisecond)
		rpc.addBlock(5, []*abci.ExecTxResult{{Events: []abci.Event{requested(types.ImageID{5})}}})
	}()

	block, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(5), block.Height)
	require.Len(t, block.Events, 1)
}

func TestFeed_RetriesTransientFailures(t *testing.T) {
	rpc := newFakeRPC()
	rpc.addBlock(1, nil)
	rpc.failStatus = 2
	rpc.failBlocks = 2

	feed := chain.NewFeed(rpc, 1, testFeedConfig(), log.NewNopLogger())

	block, err := feed.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), block.Height)
}

func TestFeed_PersistentFailure(t *testing.T) {
	rpc := newFakeRPC()
	rpc.failStatus = 100

	feed := chain.NewFeed(rpc, 1, testFeedConfig(), log.NewNopLogger())

	_, err := feed.Next(context.Background())
	require.ErrorIs(t, err, types.ErrTransportFailure)
}

func TestFeed_ContextCancelled(t *testing.T) {
	rpc := newFakeRPC()
	feed := chain.NewFeed(rpc, 1, testFeedConfig(), log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := feed.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_Fetch(t *testing.T) {
	rpc := newFakeRPC()
	id := types.ImageID{0xfa}
	rpc.store[string(types.ProgramKey(id))] = []byte("program")

	client := chain.NewClient(rpc, nil, chainID, log.NewNopLogger())

	bz, err := client.Fetch(context.Background(), types.ProgramKey(id))
	require.NoError(t, err)
	require.Equal(t, []byte("program"), bz)

	bz, err = client.Fetch(context.Background(), types.ProgramKey(types.ImageID{0x01}))
	require.NoError(t, err)
	require.Nil(t, bz)

	_, err = client.Submit(context.Background(), &types.MsgUploadProgram{})
	require.Error(t, err)
}

func TestClient_SubmitMapsLedgerErrors(t *testing.T) {
	rpc := newFakeRPC()
	rpc.broadcast = func(types.Tx) (*coretypes.ResultBroadcastTxCommit, error) {
		return rejected(types.ErrProofNotVerified)
	}

	signer, err := chain.NewSignerFromHex("0x" + "11223344556677889900aabbccddeeff11223344556677889900aabbccddeeff")
	require.NoError(t, err)
	client := chain.NewClient(rpc, signer, chainID, log.NewNopLogger())

	msg := &types.MsgStoreAndVerifyProof{Prover: client.Address().String(), ImageID: types.ImageID{1}, Proof: []byte{1}}
	_, err = client.Submit(context.Background(), msg)
	require.ErrorIs(t, err, types.ErrProofNotVerified)
	require.NotErrorIs(t, err, types.ErrTransportFailure)

	rpc.broadcast = func(types.Tx) (*coretypes.ResultBroadcastTxCommit, error) {
		return nil, errUnavailable
	}
	_, err = client.Submit(context.Background(), msg)
	require.ErrorIs(t, err, types.ErrTransportFailure)

	rpc.broadcast = func(types.Tx) (*coretypes.ResultBroadcastTxCommit, error) {
		return &coretypes.ResultBroadcastTxCommit{
			CheckTx: abci.ResponseCheckTx{Codespace: types.ModuleName, Code: types.ErrInvalidSignature.ABCICode()},
		}, nil
	}
	_, err = client.Submit(context.Background(), msg)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}

func TestClient_SubmitSequences(t *testing.T) {
	rpc := newFakeRPC()
	signer, err := chain.NewSignerFromHex("0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	require.NoError(t, err)
	client := chain.NewClient(rpc, signer, chainID, log.NewNopLogger())

	// The ledger has already accepted sequence 7 from this key
	rpc.store[string(types.SequenceKey(signer.Address()))] = types.EncodeSequence(7)

	var height int64
	rpc.broadcast = func(tx types.Tx) (*coretypes.ResultBroadcastTxCommit, error) {
		height++
		return committed(height, requested(types.ImageID{1}))
	}

	msg := &types.MsgUploadProgram{Uploader: signer.Address().String(), ImageID: types.ImageID{1}, Program: []byte{1}}
	res, err := client.Submit(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Height)
	require.Len(t, res.Events, 1)

	_, err = client.Submit(context.Background(), msg)
	require.NoError(t, err)

	require.Len(t, rpc.txs, 2)
	require.Equal(t, uint64(8), rpc.txs[0].Sequence)
	require.Equal(t, uint64(9), rpc.txs[1].Sequence)
	require.Equal(t, chainID, rpc.txs[0].ChainID)
}

func TestClient_SubmitResyncsStaleSequence(t *testing.T) {
	rpc := newFakeRPC()
	signer, err := chain.NewSignerFromHex("0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	require.NoError(t, err)
	client := chain.NewClient(rpc, signer, chainID, log.NewNopLogger())

	seqKey := string(types.SequenceKey(signer.Address()))
	rpc.broadcast = func(tx types.Tx) (*coretypes.ResultBroadcastTxCommit, error) {
		// Another process using the same key got to sequence 20
		if tx.Sequence <= 20 {
			rpc.store[seqKey] = types.EncodeSequence(20)
			return rejected(types.ErrInvalidSequence)
		}
		return committed(3)
	}

	msg := &types.MsgUploadProgram{Uploader: signer.Address().String(), ImageID: types.ImageID{1}, Program: []byte{1}}
	_, err = client.Submit(context.Background(), msg)
	require.NoError(t, err)

	require.Len(t, rpc.txs, 2)
	require.Equal(t, uint64(1), rpc.txs[0].Sequence)
	require.Equal(t, uint64(21), rpc.txs[1].Sequence)
}

func TestSigner_FromMnemonic(t *testing.T) {
	const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	a, err := chain.NewSignerFromMnemonic(mnemonic)
	require.NoError(t, err)
	b, err := chain.NewSignerFromMnemonic("  " + mnemonic + "\n")
	require.NoError(t, err)
	require.Equal(t, a.Address(), b.Address())
	require.Len(t, a.Address(), 20)

	_, err = chain.NewSignerFromMnemonic("abandon abandon abandon")
	require.Error(t, err)
}

func TestSigner_FromHex(t *testing.T) {
	_, err := chain.NewSignerFromHex("zz")
	require.Error(t, err)

	_, err = chain.NewSignerFromHex("0102")
	require.Error(t, err)
}
