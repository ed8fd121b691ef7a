package keeper

import (
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authkeeper "github.com/cosmos/cosmos-sdk/x/auth/keeper"
	bankkeeper "github.com/cosmos/cosmos-sdk/x/bank/keeper"
	banktestutil "github.com/cosmos/cosmos-sdk/x/bank/testutil"
	"github.com/stretchr/testify/require"

	"github.com/proofmarket/prover/app"
	"github.com/proofmarket/prover/x/prover/keeper"
	"github.com/proofmarket/prover/x/prover/receipt"
	"github.com/proofmarket/prover/x/prover/types"
)

// TestChainID is the chain id of fixture contexts.
const TestChainID = "prover-test-1"

// ProverFixture bundles a prover keeper with the real auth and bank keepers it
// escrows through, all over the multistore of one in-memory ProverApp.
type ProverFixture struct {
	App           *app.ProverApp
	Keeper        *keeper.Keeper
	Ctx           sdk.Context
	BankKeeper    bankkeeper.BaseKeeper
	AccountKeeper authkeeper.AccountKeeper
	StoreKey      *storetypes.KVStoreKey
}

// ProverKeeper creates a test keeper for the prover module that accepts
// dev-mode receipts.
func ProverKeeper(t testing.TB) (*keeper.Keeper, sdk.Context) {
	f := NewProverFixture(t, receipt.Verifier{})
	return f.Keeper, f.Ctx
}

// NewProverFixture builds a fixture whose keeper verifies proofs with verifier.
// Its context writes the app's working state directly.
func NewProverFixture(t testing.TB, verifier types.ReceiptVerifier) *ProverFixture {
	a, err := app.New(log.NewNopLogger(), dbm.NewMemDB(), TestChainID, verifier)
	require.NoError(t, err)

	ctx := a.NewUncachedContext(cmtproto.Header{ChainID: TestChainID, Height: 1})
	require.NoError(t, a.ProverKeeper.SetParams(ctx, types.DefaultParams()))

	return &ProverFixture{
		App:           a,
		Keeper:        a.ProverKeeper,
		Ctx:           ctx,
		BankKeeper:    a.BankKeeper,
		AccountKeeper: a.AccountKeeper,
		StoreKey:      a.GetKey(types.StoreKey),
	}
}

// Fund mints amount of the reward denom into addr.
func (f *ProverFixture) Fund(t testing.TB, addr sdk.AccAddress, amount int64) {
	t.Helper()
	coins := sdk.NewCoins(sdk.NewCoin(types.DefaultRewardDenom, math.NewInt(amount)))
	require.NoError(t, banktestutil.FundAccount(f.Ctx, f.BankKeeper, addr, coins))
}

// Balance returns the reward denom balance of addr.
func (f *ProverFixture) Balance(addr sdk.AccAddress) math.Int {
	return f.BankKeeper.GetBalance(f.Ctx, addr, types.DefaultRewardDenom).Amount
}

// EscrowBalance returns the reward denom balance held by the module account.
func (f *ProverFixture) EscrowBalance() math.Int {
	return f.Balance(f.Keeper.ModuleAddress())
}

// TestAccount derives a deterministic key and address from name.
func TestAccount(name string) (*secp256k1.PrivKey, sdk.AccAddress) {
	priv := secp256k1.GenPrivKeyFromSecret([]byte(name))
	return priv, sdk.AccAddress(priv.PubKey().Address())
}

// AddressOf returns the account address of priv.
func AddressOf(priv *secp256k1.PrivKey) sdk.AccAddress {
	return sdk.AccAddress(priv.PubKey().Address())
}
