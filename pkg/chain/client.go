// Package chain connects off-chain components to a prover ledger node over
// CometBFT RPC: raw store reads, signed tx submission and a finalized block
// feed.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofmarket/prover/x/prover/types"
)

// RPC is the subset of the CometBFT RPC client used by Client and Feed.
type RPC interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error)
	ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error)
	BroadcastTxCommit(ctx context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTxCommit, error)
}

var _ RPC = (*rpchttp.HTTP)(nil)

// Dial connects to the CometBFT RPC endpoint at addr.
func Dial(addr string) (*rpchttp.HTTP, error) {
	c, err := rpchttp.New(addr, "/websocket")
	if err != nil {
		return nil, types.ErrTransportFailure.Wrapf("rpc client for %s: %v", addr, err)
	}
	return c, nil
}

// TxResult is the outcome of a tx committed to a block.
type TxResult struct {
	Height int64
	Hash   []byte
	Events []abci.Event
}

// Client reads the prover store and submits signed txs. Submissions are
// serialized so sequences reach the ledger in order.
type Client struct {
	rpc     RPC
	signer  *Signer
	chainID string
	logger  log.Logger

	submitMu sync.Mutex
}

// NewClient returns a client that signs with signer for chainID. signer may
// be nil for a read-only client.
func NewClient(rpc RPC, signer *Signer, chainID string, logger log.Logger) *Client {
	return &Client{
		rpc:     rpc,
		signer:  signer,
		chainID: chainID,
		logger:  logger.With("module", "chain"),
	}
}

// Address returns the signer's account address.
func (c *Client) Address() sdk.AccAddress {
	if c.signer == nil {
		return nil
	}
	return c.signer.Address()
}

// Fetch returns the raw value stored under key in the prover store, or nil
// if the key is absent.
func (c *Client) Fetch(ctx context.Context, key []byte) ([]byte, error) {
	res, err := c.rpc.ABCIQuery(ctx, types.QueryStorePath, key)
	if err != nil {
		return nil, types.ErrTransportFailure.Wrapf("abci query: %v", err)
	}
	if res.Response.Code != 0 {
		return nil, errorsmod.ABCIError(res.Response.Codespace, res.Response.Code, res.Response.Log)
	}
	return res.Response.Value, nil
}

// Submit signs msg, broadcasts it and waits for it to be committed. Ledger
// rejections come back as the registered module error; an RPC failure is
// ErrTransportFailure. A stale sequence is resynced from the ledger and the
// tx is signed again once.
func (c *Client) Submit(ctx context.Context, msg types.Msg) (*TxResult, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("client has no signer")
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	if !c.signer.Synced() {
		if err := c.syncSequence(ctx); err != nil {
			return nil, err
		}
	}

	res, err := c.broadcast(ctx, msg)
	if errors.Is(err, types.ErrInvalidSequence) {
		c.logger.Info("resyncing sequence", "address", c.signer.Address().String())
		if err := c.syncSequence(ctx); err != nil {
			return nil, err
		}
		res, err = c.broadcast(ctx, msg)
	}
	return res, err
}

func (c *Client) broadcast(ctx context.Context, msg types.Msg) (*TxResult, error) {
	txBytes, err := c.signer.Sign(c.chainID, msg)
	if err != nil {
		return nil, err
	}

	res, err := c.rpc.BroadcastTxCommit(ctx, txBytes)
	if err != nil {
		return nil, types.ErrTransportFailure.Wrapf("broadcast %s: %v", msg.Type(), err)
	}
	if err := ResultError(res.CheckTx.Codespace, res.CheckTx.Code, res.CheckTx.Log); err != nil {
		return nil, err
	}
	if err := ResultError(res.TxResult.Codespace, res.TxResult.Code, res.TxResult.Log); err != nil {
		return nil, err
	}

	c.logger.Debug("tx committed", "type", msg.Type(), "height", res.Height)
	return &TxResult{
		Height: res.Height,
		Hash:   res.Hash,
		Events: res.TxResult.Events,
	}, nil
}

func (c *Client) syncSequence(ctx context.Context) error {
	bz, err := c.Fetch(ctx, types.SequenceKey(c.signer.Address()))
	if err != nil {
		return err
	}
	c.signer.SetSequence(types.DecodeSequence(bz))
	return nil
}

// ResultError rebuilds the error of a failed tx result. It returns nil for
// code zero.
func ResultError(codespace string, code uint32, msg string) error {
	if code == abci.CodeTypeOK {
		return nil
	}
	return errorsmod.ABCIError(codespace, code, msg)
}
