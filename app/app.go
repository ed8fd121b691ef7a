// Package app assembles the prover ledger application.
//
// ProverApp mounts the prover module next to the auth and bank keepers it
// escrows rewards through, and exposes the result as a CometBFT ABCI
// application:
//   - InitChain loads balances and prover genesis
//   - CheckTx authenticates a signed prover tx against committed state
//   - FinalizeBlock delivers every tx of a block through the prover keeper
//     and asserts the registered invariants every InvCheckPeriod blocks
//   - Commit persists the block
//   - Query serves raw prover store reads on types.QueryStorePath
package app

import (
	"context"
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	cryptocodec "github.com/cosmos/cosmos-sdk/crypto/codec"
	"github.com/cosmos/cosmos-sdk/runtime"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authkeeper "github.com/cosmos/cosmos-sdk/x/auth/keeper"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	bankkeeper "github.com/cosmos/cosmos-sdk/x/bank/keeper"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"
	minttypes "github.com/cosmos/cosmos-sdk/x/mint/types"

	proverkeeper "github.com/proofmarket/prover/x/prover/keeper"
	provertypes "github.com/proofmarket/prover/x/prover/types"
)

// Name is the application name reported by Info.
const Name = "proverd"

// module account permissions
var maccPerms = map[string][]string{
	minttypes.ModuleName:   {authtypes.Minter},
	provertypes.ModuleName: {authtypes.Minter},
}

var (
	_ abci.Application      = (*ProverApp)(nil)
	_ sdk.InvariantRegistry = (*ProverApp)(nil)
)

// invariantRoute is one registered module invariant.
type invariantRoute struct {
	module string
	route  string
	invar  sdk.Invariant
}

// Option configures a ProverApp.
type Option func(*ProverApp)

// WithInvCheckPeriod asserts all invariants after every period blocks. Zero
// disables the checks.
func WithInvCheckPeriod(period uint) Option {
	return func(app *ProverApp) {
		app.invCheckPeriod = period
	}
}

// ProverApp is the prover ledger application.
type ProverApp struct {
	abci.BaseApplication

	logger  log.Logger
	chainID string

	cms  storetypes.CommitMultiStore
	keys map[string]*storetypes.KVStoreKey

	AccountKeeper authkeeper.AccountKeeper
	BankKeeper    bankkeeper.BaseKeeper
	ProverKeeper  *proverkeeper.Keeper

	invCheckPeriod uint
	invariants     []invariantRoute

	// mu guards block execution against concurrent queries
	mu sync.RWMutex
}

// New builds a ProverApp over db for chainID, loading its latest committed
// version. Proofs are checked with verifier.
func New(logger log.Logger, db dbm.DB, chainID string, verifier provertypes.ReceiptVerifier, opts ...Option) (*ProverApp, error) {
	if chainID == "" {
		return nil, fmt.Errorf("chain id is required")
	}

	keys := storetypes.NewKVStoreKeys(authtypes.StoreKey, banktypes.StoreKey, provertypes.StoreKey)

	cms := store.NewCommitMultiStore(db, logger, metrics.NewNoOpMetrics())
	for _, key := range keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}

	registry := codectypes.NewInterfaceRegistry()
	cryptocodec.RegisterInterfaces(registry)
	authtypes.RegisterInterfaces(registry)
	banktypes.RegisterInterfaces(registry)
	appCodec := codec.NewProtoCodec(registry)
	authority := authtypes.NewModuleAddress(govtypes.ModuleName).String()
	bech32Prefix := sdk.GetConfig().GetBech32AccountAddrPrefix()

	app := &ProverApp{
		logger:  logger,
		chainID: chainID,
		cms:     cms,
		keys:    keys,
	}

	app.AccountKeeper = authkeeper.NewAccountKeeper(
		appCodec,
		runtime.NewKVStoreService(keys[authtypes.StoreKey]),
		authtypes.ProtoBaseAccount,
		maccPerms,
		address.NewBech32Codec(bech32Prefix),
		bech32Prefix,
		authority,
	)

	app.BankKeeper = bankkeeper.NewBaseKeeper(
		appCodec,
		runtime.NewKVStoreService(keys[banktypes.StoreKey]),
		app.AccountKeeper,
		BlockedModuleAccountAddrs(),
		authority,
		logger,
	)

	app.ProverKeeper = proverkeeper.NewKeeper(
		keys[provertypes.StoreKey],
		app.BankKeeper,
		app.AccountKeeper,
		verifier,
	)
	proverkeeper.RegisterInvariants(app, *app.ProverKeeper)

	for _, opt := range opts {
		opt(app)
	}

	return app, nil
}

// RegisterRoute implements sdk.InvariantRegistry.
func (app *ProverApp) RegisterRoute(moduleName, route string, invar sdk.Invariant) {
	app.invariants = append(app.invariants, invariantRoute{module: moduleName, route: route, invar: invar})
}

// AssertInvariants runs every registered invariant against ctx and returns
// the first broken one as an error.
func (app *ProverApp) AssertInvariants(ctx sdk.Context) error {
	for _, inv := range app.invariants {
		if msg, broken := inv.invar(ctx); broken {
			return fmt.Errorf("invariant %s/%s broken at height %d: %s", inv.module, inv.route, ctx.BlockHeight(), msg)
		}
	}
	return nil
}

// GetKey returns the KVStoreKey for the provided store key.
func (app *ProverApp) GetKey(storeKey string) *storetypes.KVStoreKey {
	return app.keys[storeKey]
}

// ChainID returns the chain id the app accepts txs for.
func (app *ProverApp) ChainID() string {
	return app.chainID
}

// LastBlockHeight returns the height of the last committed block.
func (app *ProverApp) LastBlockHeight() int64 {
	return app.cms.LastCommitID().Version
}

// NewUncachedContext returns a context that reads and writes the working
// state directly. Writes become part of the next committed block.
func (app *ProverApp) NewUncachedContext(header cmtproto.Header) sdk.Context {
	if header.ChainID == "" {
		header.ChainID = app.chainID
	}
	return sdk.NewContext(app.cms, header, false, app.logger)
}

// Info implements abci.Application.
func (app *ProverApp) Info(context.Context, *abci.RequestInfo) (*abci.ResponseInfo, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	last := app.cms.LastCommitID()
	return &abci.ResponseInfo{
		Data:             Name,
		LastBlockHeight:  last.Version,
		LastBlockAppHash: last.Hash,
	}, nil
}

// InitChain implements abci.Application.
func (app *ProverApp) InitChain(_ context.Context, req *abci.RequestInitChain) (*abci.ResponseInitChain, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if req.ChainId != app.chainID {
		return nil, fmt.Errorf("genesis chain id %q does not match %q", req.ChainId, app.chainID)
	}

	genesis := NewDefaultGenesisState()
	if len(req.AppStateBytes) > 0 {
		var err error
		if genesis, err = DecodeGenesisState(req.AppStateBytes); err != nil {
			return nil, err
		}
	}

	ms := app.cms.CacheMultiStore()
	ctx := sdk.NewContext(ms, cmtproto.Header{ChainID: app.chainID, Height: req.InitialHeight, Time: req.Time}, false, app.logger)
	if err := app.initGenesis(ctx, genesis); err != nil {
		return nil, err
	}
	ms.Write()

	app.logger.Info("initialized chain", "chain_id", app.chainID, "accounts", len(genesis.Balances))
	return &abci.ResponseInitChain{AppHash: app.cms.WorkingHash()}, nil
}

// CheckTx implements abci.Application.
func (app *ProverApp) CheckTx(_ context.Context, req *abci.RequestCheckTx) (*abci.ResponseCheckTx, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	ms, err := app.committedStore()
	if err != nil {
		return nil, err
	}
	ctx := sdk.NewContext(ms, cmtproto.Header{ChainID: app.chainID, Height: app.LastBlockHeight()}, true, app.logger)

	if err := app.ProverKeeper.CheckTx(ctx, req.Tx); err != nil {
		codespace, code, msg := errorsmod.ABCIInfo(err, false)
		return &abci.ResponseCheckTx{Codespace: codespace, Code: code, Log: msg}, nil
	}
	return &abci.ResponseCheckTx{}, nil
}

// FinalizeBlock implements abci.Application.
func (app *ProverApp) FinalizeBlock(_ context.Context, req *abci.RequestFinalizeBlock) (*abci.ResponseFinalizeBlock, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if expected := app.LastBlockHeight() + 1; req.Height != expected {
		return nil, fmt.Errorf("invalid height %d, expected %d", req.Height, expected)
	}

	ms := app.cms.CacheMultiStore()
	ctx := sdk.NewContext(ms, cmtproto.Header{ChainID: app.chainID, Height: req.Height, Time: req.Time}, false, app.logger)

	results := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, tx := range req.Txs {
		res := app.ProverKeeper.DeliverTx(ctx, tx)
		results = append(results, &res)
	}

	if app.invCheckPeriod > 0 && uint64(req.Height)%uint64(app.invCheckPeriod) == 0 {
		if err := app.AssertInvariants(ctx); err != nil {
			app.logger.Error("halting on broken invariant", "height", req.Height, "err", err)
			return nil, err
		}
	}
	ms.Write()

	return &abci.ResponseFinalizeBlock{
		TxResults: results,
		AppHash:   app.cms.WorkingHash(),
	}, nil
}

// Commit implements abci.Application.
func (app *ProverApp) Commit(context.Context, *abci.RequestCommit) (*abci.ResponseCommit, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	id := app.cms.Commit()
	app.logger.Debug("committed block", "height", id.Version, "app_hash", fmt.Sprintf("%X", id.Hash))
	return &abci.ResponseCommit{}, nil
}

// Query implements abci.Application. Only raw prover store reads at the
// latest committed height are served.
func (app *ProverApp) Query(_ context.Context, req *abci.RequestQuery) (*abci.ResponseQuery, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	if req.Path != provertypes.QueryStorePath {
		return queryError(provertypes.ErrValidationFailed.Wrapf("unsupported query path %s", req.Path)), nil
	}
	height := app.LastBlockHeight()
	if req.Height != 0 && req.Height != height {
		return queryError(provertypes.ErrValidationFailed.Wrapf("only the latest height %d can be queried", height)), nil
	}

	ms, err := app.committedStore()
	if err != nil {
		return queryError(err), nil
	}
	ctx := sdk.NewContext(ms, cmtproto.Header{ChainID: app.chainID, Height: height}, true, app.logger)

	return &abci.ResponseQuery{
		Key:    req.Data,
		Value:  app.ProverKeeper.Get(ctx, req.Data),
		Height: height,
	}, nil
}

// committedStore branches the last committed state, or the working state
// before the first commit.
func (app *ProverApp) committedStore() (storetypes.CacheMultiStore, error) {
	height := app.LastBlockHeight()
	if height == 0 {
		return app.cms.CacheMultiStore(), nil
	}
	return app.cms.CacheMultiStoreWithVersion(height)
}

func queryError(err error) *abci.ResponseQuery {
	codespace, code, msg := errorsmod.ABCIInfo(err, false)
	return &abci.ResponseQuery{Codespace: codespace, Code: code, Log: msg}
}

// GetMaccPerms returns a copy of the module account permissions
func GetMaccPerms() map[string][]string {
	dup := make(map[string][]string, len(maccPerms))
	for acc, perms := range maccPerms {
		dup[acc] = perms
	}
	return dup
}

// BlockedModuleAccountAddrs returns all the app's blocked module account
// addresses.
func BlockedModuleAccountAddrs() map[string]bool {
	modAccAddrs := make(map[string]bool)
	for acc := range GetMaccPerms() {
		modAccAddrs[authtypes.NewModuleAddress(acc).String()] = true
	}

	return modAccAddrs
}
