package types

// Event types for the prover module
// All event types use lowercase with underscore separator
const (
	EventTypeProgramUploaded = "program_uploaded"
	EventTypeProofRequested  = "proof_requested"
	EventTypeProofVerified   = "proof_verified"

	// Escrow events
	EventTypeEscrowReserved    = "escrow_reserved"
	EventTypeEscrowRepatriated = "escrow_repatriated"
	EventTypeEscrowReleased    = "escrow_released"
)

// Event attribute keys for the prover module
const (
	AttributeKeyImageID     = "image_id"
	AttributeKeyArgs        = "args"
	AttributeKeyReward      = "reward"
	AttributeKeyRequester   = "requester"
	AttributeKeyUploader    = "uploader"
	AttributeKeyProver      = "prover"
	AttributeKeyProgramSize = "program_size"
	AttributeKeySegments    = "segments"
	AttributeKeySettled     = "settled"
	AttributeKeyOverwrite   = "overwrite"

	// Escrow attributes
	AttributeKeyFrom   = "from"
	AttributeKeyTo     = "to"
	AttributeKeyAmount = "amount"
)
