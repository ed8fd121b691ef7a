package keeper

import (
	"context"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofmarket/prover/x/prover/types"
)

// InitGenesis initializes the prover module's state from a genesis state
func (k Keeper) InitGenesis(ctx context.Context, data types.GenesisState) error {
	if err := data.Validate(); err != nil {
		return types.ErrInvalidGenesis.Wrap(err.Error())
	}

	if err := k.SetParams(ctx, data.Params); err != nil {
		return fmt.Errorf("failed to set params: %w", err)
	}

	for _, p := range data.Programs {
		k.setProgram(ctx, p.ImageID, p.Program)
	}

	for _, r := range data.Requests {
		if err := k.SetProofRequest(ctx, r.ImageID, r.Request); err != nil {
			return fmt.Errorf("failed to initialize request %s: %w", r.ImageID, err)
		}
	}

	for _, p := range data.Proofs {
		if err := k.SetProof(ctx, p.ImageID, p.Record); err != nil {
			return fmt.Errorf("failed to initialize proof %s: %w", p.ImageID, err)
		}
	}

	if err := k.fundGenesisEscrow(ctx, data.Requests); err != nil {
		return err
	}

	for _, s := range data.Sequences {
		addr, err := sdk.AccAddressFromBech32(s.Address)
		if err != nil {
			return fmt.Errorf("invalid sequence address %s: %w", s.Address, err)
		}
		k.SetSequence(ctx, addr, s.Sequence)
	}

	return nil
}

// ExportGenesis returns the prover module's exported genesis
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, err
	}

	gs := types.DefaultGenesis()
	gs.Params = params

	if err := k.IteratePrograms(ctx, func(id types.ImageID, program []byte) (bool, error) {
		gs.Programs = append(gs.Programs, types.GenesisProgram{ImageID: id, Program: append([]byte{}, program...)})
		return false, nil
	}); err != nil {
		return nil, err
	}

	if err := k.IterateProofRequests(ctx, func(id types.ImageID, request types.ProofRequest) (bool, error) {
		gs.Requests = append(gs.Requests, types.GenesisRequest{ImageID: id, Request: request})
		return false, nil
	}); err != nil {
		return nil, err
	}

	if err := k.IterateProofs(ctx, func(id types.ImageID, record types.ProofRecord) (bool, error) {
		gs.Proofs = append(gs.Proofs, types.GenesisProof{ImageID: id, Record: record})
		return false, nil
	}); err != nil {
		return nil, err
	}

	k.IterateSequences(ctx, func(addr sdk.AccAddress, sequence uint64) bool {
		gs.Sequences = append(gs.Sequences, types.GenesisSequence{Address: addr.String(), Sequence: sequence})
		return false
	})

	return gs, nil
}
