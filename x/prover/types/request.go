package types

import (
	"fmt"
	"strings"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// RequestStatus is the lifecycle state of a proof request.
type RequestStatus uint8

const (
	RequestStatusUnspecified RequestStatus = iota
	// RequestStatusRequested means the reward is held in escrow awaiting a proof.
	RequestStatusRequested
	// RequestStatusSettled means the reward was paid to a prover.
	RequestStatusSettled
)

func (s RequestStatus) String() string {
	switch s {
	case RequestStatusRequested:
		return "REQUESTED"
	case RequestStatusSettled:
		return "SETTLED"
	default:
		return "UNSPECIFIED"
	}
}

func (s RequestStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RequestStatus) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "REQUESTED":
		*s = RequestStatusRequested
	case "SETTLED":
		*s = RequestStatusSettled
	case "UNSPECIFIED", "":
		*s = RequestStatusUnspecified
	default:
		return fmt.Errorf("unknown request status %q", text)
	}
	return nil
}

// ProofRequest is the single outstanding request for a proof of an image id.
type ProofRequest struct {
	Requester       sdk.AccAddress `json:"requester"`
	Reward          sdk.Coin       `json:"reward"`
	Args            Args           `json:"args"`
	Status          RequestStatus  `json:"status"`
	Prover          sdk.AccAddress `json:"prover,omitempty"`
	RequestedHeight int64          `json:"requested_height"`
	SettledHeight   int64          `json:"settled_height,omitempty"`
}

// IsHeld reports whether the request's reward is still reserved in escrow.
func (r ProofRequest) IsHeld() bool {
	return r.Status == RequestStatusRequested
}

// Validate checks a stored or imported request.
func (r ProofRequest) Validate() error {
	if len(r.Requester) == 0 {
		return ErrInvalidAddress.Wrap("request has no requester")
	}
	if err := ValidateReward(r.Reward.Amount); err != nil {
		return err
	}
	if err := sdk.ValidateDenom(r.Reward.Denom); err != nil {
		return ErrInvalidReward.Wrap(err.Error())
	}
	switch r.Status {
	case RequestStatusRequested:
	case RequestStatusSettled:
		if len(r.Prover) == 0 {
			return ErrInvalidAddress.Wrap("settled request has no prover")
		}
	default:
		return ErrValidationFailed.Wrapf("request status %s", r.Status)
	}
	return nil
}

// ValidateReward rejects negative rewards and rewards wider than 128 bits.
func ValidateReward(reward math.Int) error {
	if reward.IsNil() {
		return ErrInvalidReward.Wrap("reward is nil")
	}
	if reward.IsNegative() {
		return ErrInvalidReward.Wrapf("reward %s is negative", reward)
	}
	if reward.BigInt().BitLen() > MaxRewardBits {
		return ErrInvalidReward.Wrapf("reward %s exceeds %d bits", reward, MaxRewardBits)
	}
	return nil
}

// MaxRewardBits bounds reward amounts to unsigned 128-bit values.
const MaxRewardBits = 128

type proofRequestCBOR struct {
	Requester       []byte `cbor:"1,keyasint"`
	Denom           string `cbor:"2,keyasint"`
	Amount          string `cbor:"3,keyasint"`
	Args            Args   `cbor:"4,keyasint"`
	Status          uint8  `cbor:"5,keyasint"`
	Prover          []byte `cbor:"6,keyasint"`
	RequestedHeight int64  `cbor:"7,keyasint"`
	SettledHeight   int64  `cbor:"8,keyasint"`
}

func (r ProofRequest) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(proofRequestCBOR{
		Requester:       r.Requester,
		Denom:           r.Reward.Denom,
		Amount:          intString(r.Reward.Amount),
		Args:            r.Args,
		Status:          uint8(r.Status),
		Prover:          r.Prover,
		RequestedHeight: r.RequestedHeight,
		SettledHeight:   r.SettledHeight,
	})
}

func (r *ProofRequest) UnmarshalCBOR(bz []byte) error {
	var raw proofRequestCBOR
	if err := decMode.Unmarshal(bz, &raw); err != nil {
		return err
	}
	amount, ok := math.NewIntFromString(raw.Amount)
	if !ok {
		return ErrInvalidReward.Wrapf("cannot parse amount %q", raw.Amount)
	}
	*r = ProofRequest{
		Requester:       raw.Requester,
		Reward:          sdk.Coin{Denom: raw.Denom, Amount: amount},
		Args:            raw.Args,
		Status:          RequestStatus(raw.Status),
		Prover:          raw.Prover,
		RequestedHeight: raw.RequestedHeight,
		SettledHeight:   raw.SettledHeight,
	}
	return nil
}

func intString(i math.Int) string {
	if i.IsNil() {
		return "0"
	}
	return i.String()
}
