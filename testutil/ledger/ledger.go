// Package ledger runs a ProverApp as an in-process node behind the CometBFT
// RPC surface used by pkg/chain. Broadcast txs pass CheckTx and are then
// committed in a block of their own.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/proofmarket/prover/pkg/chain"
	keepertest "github.com/proofmarket/prover/testutil/keeper"
	"github.com/proofmarket/prover/x/prover/types"
)

// ErrUnavailable is returned by RPC calls while the node is made to fail.
var ErrUnavailable = errors.New("ledger: node unavailable")

var _ chain.RPC = (*Ledger)(nil)

var genesisTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Ledger is an in-process prover node.
type Ledger struct {
	mu sync.Mutex

	fixture *keepertest.ProverFixture
	blocks  map[int64]*coretypes.ResultBlockResults
	height  int64

	failBroadcasts int
	failQueries    int
	down           bool
}

// New starts a ledger at height zero whose keeper verifies with verifier.
func New(t testing.TB, verifier types.ReceiptVerifier) *Ledger {
	f := keepertest.NewProverFixture(t, verifier)
	return &Ledger{
		fixture: f,
		blocks:  map[int64]*coretypes.ResultBlockResults{},
	}
}

// Fixture exposes the underlying keeper fixture. Callers must not use it
// concurrently with RPC calls.
func (l *Ledger) Fixture() *keepertest.ProverFixture {
	return l.fixture
}

// Height returns the latest committed height.
func (l *Ledger) Height() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// DeliverBlock commits a block holding txs and returns their results.
func (l *Ledger) DeliverBlock(txs ...[]byte) []*abci.ExecTxResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deliverBlock(txs...)
}

func (l *Ledger) deliverBlock(txs ...[]byte) []*abci.ExecTxResult {
	a := l.fixture.App
	height := l.height + 1

	res, err := a.FinalizeBlock(context.Background(), &abci.RequestFinalizeBlock{
		Height: height,
		Time:   genesisTime.Add(time.Duration(height) * time.Second),
		Txs:    txs,
	})
	if err != nil {
		panic(fmt.Sprintf("ledger: finalize block %d: %v", height, err))
	}
	if _, err := a.Commit(context.Background(), &abci.RequestCommit{}); err != nil {
		panic(fmt.Sprintf("ledger: commit block %d: %v", height, err))
	}

	l.height = height
	l.fixture.Ctx = l.fixture.Ctx.WithBlockHeight(height)
	l.blocks[height] = &coretypes.ResultBlockResults{Height: height, TxsResults: res.TxResults}
	return res.TxResults
}

// FailBroadcasts makes the next n broadcasts fail before reaching the keeper.
func (l *Ledger) FailBroadcasts(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failBroadcasts = n
}

// FailQueries makes the next n store queries fail.
func (l *Ledger) FailQueries(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failQueries = n
}

// SetDown makes every RPC call fail while down is true.
func (l *Ledger) SetDown(down bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.down = down
}

func (l *Ledger) Status(context.Context) (*coretypes.ResultStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.down {
		return nil, ErrUnavailable
	}
	return &coretypes.ResultStatus{SyncInfo: coretypes.SyncInfo{LatestBlockHeight: l.height}}, nil
}

func (l *Ledger) BlockResults(_ context.Context, height *int64) (*coretypes.ResultBlockResults, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.down {
		return nil, ErrUnavailable
	}
	if height == nil {
		return nil, fmt.Errorf("height is required")
	}
	res, ok := l.blocks[*height]
	if !ok {
		return nil, fmt.Errorf("height %d must be less than or equal to the current blockchain height %d", *height, l.height)
	}
	return res, nil
}

func (l *Ledger) ABCIQuery(_ context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.down {
		return nil, ErrUnavailable
	}
	if l.failQueries > 0 {
		l.failQueries--
		return nil, ErrUnavailable
	}
	res, err := l.fixture.App.Query(context.Background(), &abci.RequestQuery{Path: path, Data: data})
	if err != nil {
		return nil, err
	}
	return &coretypes.ResultABCIQuery{Response: *res}, nil
}

func (l *Ledger) BroadcastTxCommit(_ context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTxCommit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.down {
		return nil, ErrUnavailable
	}
	if l.failBroadcasts > 0 {
		l.failBroadcasts--
		return nil, ErrUnavailable
	}

	checked, err := l.fixture.App.CheckTx(context.Background(), &abci.RequestCheckTx{Tx: tx})
	if err != nil {
		return nil, err
	}
	if checked.Code != 0 {
		return &coretypes.ResultBroadcastTxCommit{CheckTx: *checked, Hash: tx.Hash()}, nil
	}

	res := l.deliverBlock(tx)
	return &coretypes.ResultBroadcastTxCommit{
		CheckTx:  *checked,
		TxResult: *res[0],
		Hash:     tx.Hash(),
		Height:   l.height,
	}, nil
}
