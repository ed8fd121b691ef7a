package types

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Prover module sentinel errors

var (
	// Registry and proof errors
	ErrProgramAlreadyExists = errorsmod.Register(ModuleName, 2, "program already exists")
	ErrProgramDoesNotExist  = errorsmod.Register(ModuleName, 3, "program does not exist")
	ErrProofInvalid         = errorsmod.Register(ModuleName, 4, "proof is malformed")
	ErrProofNotVerified     = errorsmod.Register(ModuleName, 5, "proof not verified")
	ErrProgramTooLarge      = errorsmod.Register(ModuleName, 6, "program exceeds maximum length")

	// Request and escrow errors
	ErrInsufficientBalance = errorsmod.Register(ModuleName, 10, "insufficient balance")
	ErrInvalidReward       = errorsmod.Register(ModuleName, 11, "invalid reward")
	ErrArgsTooLong         = errorsmod.Register(ModuleName, 12, "arguments exceed maximum length")
	ErrInvalidImageID      = errorsmod.Register(ModuleName, 13, "invalid image id")
	ErrEscrowFailed        = errorsmod.Register(ModuleName, 14, "escrow transfer failed")

	// Transaction errors
	ErrInvalidTx        = errorsmod.Register(ModuleName, 20, "invalid transaction")
	ErrInvalidSignature = errorsmod.Register(ModuleName, 21, "invalid signature")
	ErrInvalidSequence  = errorsmod.Register(ModuleName, 22, "invalid sequence")
	ErrWrongChainID     = errorsmod.Register(ModuleName, 23, "wrong chain id")
	ErrUnauthorized     = errorsmod.Register(ModuleName, 24, "unauthorized signer")
	ErrInvalidAddress   = errorsmod.Register(ModuleName, 25, "invalid address")
	ErrValidationFailed = errorsmod.Register(ModuleName, 26, "message validation failed")
	ErrUnknownEvent     = errorsmod.Register(ModuleName, 27, "unknown event")
	ErrInvalidGenesis   = errorsmod.Register(ModuleName, 28, "invalid genesis state")

	// Worker errors, never returned by the ledger
	ErrTransportFailure = errorsmod.Register(ModuleName, 40, "ledger transport failure")
	ErrExecutionFault   = errorsmod.Register(ModuleName, 41, "program execution fault")
)

// ErrorWithRecovery wraps an error with recovery suggestions
type ErrorWithRecovery struct {
	Err      error
	Recovery string
}

func (e *ErrorWithRecovery) Error() string {
	return e.Err.Error()
}

func (e *ErrorWithRecovery) Unwrap() error {
	return e.Err
}

// RecoverySuggestions provides actionable recovery steps for each error type
var RecoverySuggestions = map[error]string{
	ErrProgramAlreadyExists: "Programs are immutable. Query the existing program under this image id or upload under a different image id.",
	ErrProgramDoesNotExist:  "Upload the program with upload-program before submitting a proof for its image id.",
	ErrProofInvalid:         "The proof bytes did not decode. Re-run the prover and submit its output unmodified.",
	ErrProofNotVerified:     "The receipt does not verify against the image id. Check that the prover executed the program registered under that id.",
	ErrProgramTooLarge:      "Query params for max_program_length and shrink the program.",
	ErrInsufficientBalance:  "Fund the requester account with the reward denom or lower the reward.",
	ErrInvalidReward:        "Rewards must be non-negative and fit in 128 bits.",
	ErrArgsTooLong:          "Query params for max_args_length and reduce the number of argument words.",
	ErrInvalidSequence:      "Query the signer sequence and sign with a larger value.",
	ErrWrongChainID:         "Set --chain-id to the chain id of the node you are connected to.",
	ErrUnauthorized:         "The message signer field must match the key that signs the transaction.",
	ErrTransportFailure:     "The node could not be reached. Check --node and network connectivity.",
	ErrExecutionFault:       "The engine failed to run the program. Check the program and its arguments locally.",
}

// WrapWithRecovery wraps an error with recovery suggestion
func WrapWithRecovery(err error, msg string, args ...interface{}) error {
	wrapped := errorsmod.Wrapf(err, msg, args...)

	if suggestion, ok := RecoverySuggestions[err]; ok {
		return &ErrorWithRecovery{
			Err:      wrapped,
			Recovery: suggestion,
		}
	}

	return wrapped
}

// GetRecoverySuggestion returns the recovery suggestion for the registered error err wraps.
func GetRecoverySuggestion(err error) string {
	for sentinel, suggestion := range RecoverySuggestions {
		if errors.Is(err, sentinel) {
			return suggestion
		}
	}

	return "No recovery suggestion available. Check error message for details."
}
