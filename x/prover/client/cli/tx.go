package cli

import (
	"fmt"
	"os"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/proofmarket/prover/x/prover/types"
)

// GetTxCmd returns the transaction commands for the prover module
func GetTxCmd(newClient ClientFactory) []*cobra.Command {
	return []*cobra.Command{
		CmdUploadProgram(newClient),
		CmdRequestProof(newClient),
		CmdSubmitProof(newClient),
	}
}

// CmdUploadProgram returns a CLI command handler for registering a program
func CmdUploadProgram(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload-program",
		Short: "Register a program under its image id",
		Long: `Register a program under its image id. Programs are immutable: an image id
can be registered once.

Example:
  $ proverd upload-program --program-file factors.wasm \
    --image-id fac7000000000000000000000000000000000000000000000000000000000000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, err := imageIDFlag(cmd)
			if err != nil {
				return err
			}

			path, err := cmd.Flags().GetString(FlagProgramFile)
			if err != nil {
				return err
			}
			if path == "" {
				return fmt.Errorf("--%s is required", FlagProgramFile)
			}
			program, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read program: %w", err)
			}

			client, err := newClient(cmd, true)
			if err != nil {
				return err
			}

			msg := &types.MsgUploadProgram{
				Uploader: client.Address().String(),
				ImageID:  imageID,
				Program:  program,
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}

			res, err := client.Submit(cmd.Context(), msg)
			if err != nil {
				return err
			}
			return printTxResult(cmd, res)
		},
	}

	cmd.Flags().String(FlagProgramFile, "", "Path of the program to register")
	cmd.Flags().String(FlagImageID, "", "Hex image id of the program")

	return cmd
}

// CmdRequestProof returns a CLI command handler for posting a proof request
func CmdRequestProof(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request-proof",
		Short: "Request a proof of a program run and escrow a reward for it",
		Long: `Request a proof of a program run and escrow a reward for it. Each --args flag is
one argument: a comma separated list of 32-bit words. A new request on the same
image id replaces the previous one.

Example:
  $ proverd request-proof --image-id fac7... --args 17 --args 23 --reward 1000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, err := imageIDFlag(cmd)
			if err != nil {
				return err
			}

			rawArgs, err := cmd.Flags().GetStringArray(FlagArgs)
			if err != nil {
				return err
			}
			programArgs, err := types.ParseArgs(rawArgs)
			if err != nil {
				return err
			}

			rewardStr, err := cmd.Flags().GetString(FlagReward)
			if err != nil {
				return err
			}
			reward, ok := math.NewIntFromString(rewardStr)
			if !ok {
				return fmt.Errorf("invalid reward %q", rewardStr)
			}

			client, err := newClient(cmd, true)
			if err != nil {
				return err
			}

			msg := &types.MsgRequestProof{
				Requester: client.Address().String(),
				ImageID:   imageID,
				Args:      programArgs,
				Reward:    reward,
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}

			res, err := client.Submit(cmd.Context(), msg)
			if err != nil {
				return err
			}
			return printTxResult(cmd, res)
		},
	}

	cmd.Flags().String(FlagImageID, "", "Hex image id of the program")
	cmd.Flags().StringArray(FlagArgs, nil, "Program argument as comma separated words (repeatable)")
	cmd.Flags().String(FlagReward, "0", "Reward paid to the prover, in the reward denom")

	return cmd
}

// CmdSubmitProof returns a CLI command handler for submitting proof bytes
// produced outside the worker
func CmdSubmitProof(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit-proof",
		Short: "Submit a proof for verification",
		Long: `Submit the wire bytes of a proof for verification. If the image id has an open
request, its reward is paid to the submitter.

Example:
  $ proverd submit-proof --image-id fac7... --proof-file proof.bin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, err := imageIDFlag(cmd)
			if err != nil {
				return err
			}

			path, err := cmd.Flags().GetString(FlagProofFile)
			if err != nil {
				return err
			}
			if path == "" {
				return fmt.Errorf("--%s is required", FlagProofFile)
			}
			proof, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read proof: %w", err)
			}

			client, err := newClient(cmd, true)
			if err != nil {
				return err
			}

			msg := &types.MsgStoreAndVerifyProof{
				Prover:  client.Address().String(),
				ImageID: imageID,
				Proof:   proof,
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}

			res, err := client.Submit(cmd.Context(), msg)
			if err != nil {
				return err
			}
			return printTxResult(cmd, res)
		},
	}

	cmd.Flags().String(FlagImageID, "", "Hex image id of the program")
	cmd.Flags().String(FlagProofFile, "", "Path of the proof wire bytes")

	return cmd
}
