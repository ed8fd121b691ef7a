package app

import (
	"encoding/json"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
	minttypes "github.com/cosmos/cosmos-sdk/x/mint/types"
	"github.com/hashicorp/go-multierror"

	provertypes "github.com/proofmarket/prover/x/prover/types"
)

// GenesisBalance funds an account at genesis.
type GenesisBalance struct {
	Address string    `json:"address"`
	Coins   sdk.Coins `json:"coins"`
}

// GenesisState represents the genesis state of the prover ledger
type GenesisState struct {
	Balances []GenesisBalance          `json:"balances"`
	Prover   *provertypes.GenesisState `json:"prover"`
}

// NewDefaultGenesisState returns a genesis with no balances and the default
// prover module state.
func NewDefaultGenesisState() GenesisState {
	return GenesisState{
		Balances: []GenesisBalance{},
		Prover:   provertypes.DefaultGenesis(),
	}
}

// DecodeGenesisState parses and validates JSON app state.
func DecodeGenesisState(bz []byte) (GenesisState, error) {
	var genesis GenesisState
	if err := json.Unmarshal(bz, &genesis); err != nil {
		return GenesisState{}, fmt.Errorf("failed to decode app state: %w", err)
	}
	if genesis.Prover == nil {
		genesis.Prover = provertypes.DefaultGenesis()
	}
	if err := genesis.Validate(); err != nil {
		return GenesisState{}, err
	}
	return genesis, nil
}

// Validate checks every balance and the prover state, reporting all problems.
func (gs GenesisState) Validate() error {
	var result *multierror.Error

	seen := make(map[string]bool, len(gs.Balances))
	for i, b := range gs.Balances {
		if _, err := sdk.AccAddressFromBech32(b.Address); err != nil {
			result = multierror.Append(result, fmt.Errorf("balance %d: invalid address %s: %w", i, b.Address, err))
		}
		if seen[b.Address] {
			result = multierror.Append(result, fmt.Errorf("balance %d: duplicate address %s", i, b.Address))
		}
		seen[b.Address] = true

		if err := b.Coins.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("balance %d (%s): %w", i, b.Address, err))
		}
	}

	if gs.Prover != nil {
		if err := gs.Prover.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("prover: %w", err))
		}
	}

	return result.ErrorOrNil()
}

// initGenesis mints the genesis balances and loads the prover state.
func (app *ProverApp) initGenesis(ctx sdk.Context, genesis GenesisState) error {
	for _, b := range genesis.Balances {
		addr, err := sdk.AccAddressFromBech32(b.Address)
		if err != nil {
			return fmt.Errorf("invalid balance address %s: %w", b.Address, err)
		}
		if b.Coins.IsZero() {
			continue
		}
		if err := app.BankKeeper.MintCoins(ctx, minttypes.ModuleName, b.Coins); err != nil {
			return fmt.Errorf("failed to mint genesis balance of %s: %w", b.Address, err)
		}
		if err := app.BankKeeper.SendCoinsFromModuleToAccount(ctx, minttypes.ModuleName, addr, b.Coins); err != nil {
			return fmt.Errorf("failed to fund %s: %w", b.Address, err)
		}
	}

	return app.ProverKeeper.InitGenesis(ctx, *genesis.Prover)
}
