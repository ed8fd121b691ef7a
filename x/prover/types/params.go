package types

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

const (
	// DefaultMaxProgramLength is the largest program accepted by upload, 4 MiB.
	DefaultMaxProgramLength uint64 = 4 << 20
	// DefaultMaxArgsLength is the largest total number of argument words in a request.
	DefaultMaxArgsLength uint64 = 1024
	// DefaultMaxProofLength is the largest proof accepted in wire bytes, 1 MiB.
	DefaultMaxProofLength uint64 = 1 << 20
	// DefaultRewardDenom is the denom rewards are paid in.
	DefaultRewardDenom = "stake"
)

// Params are the prover module parameters.
type Params struct {
	MaxProgramLength uint64 `cbor:"1,keyasint" json:"max_program_length"`
	MaxArgsLength    uint64 `cbor:"2,keyasint" json:"max_args_length"`
	MaxProofLength   uint64 `cbor:"3,keyasint" json:"max_proof_length"`
	RewardDenom      string `cbor:"4,keyasint" json:"reward_denom"`
}

// DefaultParams returns default module parameters
func DefaultParams() Params {
	return Params{
		MaxProgramLength: DefaultMaxProgramLength,
		MaxArgsLength:    DefaultMaxArgsLength,
		MaxProofLength:   DefaultMaxProofLength,
		RewardDenom:      DefaultRewardDenom,
	}
}

// Validate validates the params
func (p Params) Validate() error {
	if p.MaxProgramLength == 0 {
		return fmt.Errorf("max program length must be positive")
	}
	if p.MaxArgsLength == 0 {
		return fmt.Errorf("max args length must be positive")
	}
	if p.MaxProofLength == 0 {
		return fmt.Errorf("max proof length must be positive")
	}
	if err := sdk.ValidateDenom(p.RewardDenom); err != nil {
		return fmt.Errorf("invalid reward denom: %w", err)
	}
	return nil
}
