package cli

// Flag constants for prover CLI commands
const (
	FlagImageID     = "image-id"
	FlagProgramFile = "program-file"
	FlagArgs        = "args"
	FlagReward      = "reward"
	FlagOutput      = "output"
	FlagProofFile   = "proof-file"
)
