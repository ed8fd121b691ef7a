package types

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/hashicorp/go-multierror"
)

// GenesisProgram is a registered program in genesis.
type GenesisProgram struct {
	ImageID ImageID `json:"image_id"`
	Program []byte  `json:"program"`
}

// GenesisRequest is a stored proof request in genesis.
type GenesisRequest struct {
	ImageID ImageID      `json:"image_id"`
	Request ProofRequest `json:"request"`
}

// GenesisProof is a stored verified proof in genesis.
type GenesisProof struct {
	ImageID ImageID     `json:"image_id"`
	Record  ProofRecord `json:"record"`
}

// GenesisSequence is the last accepted tx sequence of an account.
type GenesisSequence struct {
	Address  string `json:"address"`
	Sequence uint64 `json:"sequence"`
}

// GenesisState is the prover module genesis state.
type GenesisState struct {
	Params    Params            `json:"params"`
	Programs  []GenesisProgram  `json:"programs"`
	Requests  []GenesisRequest  `json:"requests"`
	Proofs    []GenesisProof    `json:"proofs"`
	Sequences []GenesisSequence `json:"sequences"`
}

// DefaultGenesis returns the default genesis state
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:    DefaultParams(),
		Programs:  []GenesisProgram{},
		Requests:  []GenesisRequest{},
		Proofs:    []GenesisProof{},
		Sequences: []GenesisSequence{},
	}
}

// Validate performs basic genesis state validation. Every problem found is
// reported, not only the first.
func (gs GenesisState) Validate() error {
	var result *multierror.Error

	if err := gs.Params.Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid params: %w", err))
	}

	programs := make(map[ImageID]bool, len(gs.Programs))
	for i, p := range gs.Programs {
		if programs[p.ImageID] {
			result = multierror.Append(result, fmt.Errorf("program %d: duplicate image id %s", i, p.ImageID))
		}
		programs[p.ImageID] = true

		if len(p.Program) == 0 {
			result = multierror.Append(result, fmt.Errorf("program %d (image_id=%s): program is empty", i, p.ImageID))
		}
		if uint64(len(p.Program)) > gs.Params.MaxProgramLength {
			result = multierror.Append(result, fmt.Errorf("program %d (image_id=%s): %d bytes exceeds max program length", i, p.ImageID, len(p.Program)))
		}
	}

	requests := make(map[ImageID]bool, len(gs.Requests))
	for i, r := range gs.Requests {
		if requests[r.ImageID] {
			result = multierror.Append(result, fmt.Errorf("request %d: duplicate image id %s", i, r.ImageID))
		}
		requests[r.ImageID] = true

		if err := r.Request.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("request %d (image_id=%s): %w", i, r.ImageID, err))
		}
	}

	proofs := make(map[ImageID]bool, len(gs.Proofs))
	for i, p := range gs.Proofs {
		if proofs[p.ImageID] {
			result = multierror.Append(result, fmt.Errorf("proof %d: duplicate image id %s", i, p.ImageID))
		}
		proofs[p.ImageID] = true

		if !programs[p.ImageID] {
			result = multierror.Append(result, fmt.Errorf("proof %d (image_id=%s): no program registered", i, p.ImageID))
		}
		if err := p.Record.Proof.ValidateBasic(); err != nil {
			result = multierror.Append(result, fmt.Errorf("proof %d (image_id=%s): %w", i, p.ImageID, err))
		}
	}

	accounts := make(map[string]bool, len(gs.Sequences))
	for i, s := range gs.Sequences {
		if _, err := sdk.AccAddressFromBech32(s.Address); err != nil {
			result = multierror.Append(result, fmt.Errorf("sequence %d: invalid address %s: %w", i, s.Address, err))
		}
		if accounts[s.Address] {
			result = multierror.Append(result, fmt.Errorf("sequence %d: duplicate address %s", i, s.Address))
		}
		accounts[s.Address] = true
	}

	return result.ErrorOrNil()
}
