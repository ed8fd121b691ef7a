package cli

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"

	"github.com/proofmarket/prover/x/prover/types"
)

// GetQueryCmd returns the cli query commands for the prover module
func GetQueryCmd(newClient ClientFactory) *cobra.Command {
	proverQueryCmd := &cobra.Command{
		Use:                        "query",
		Aliases:                    []string{"q"},
		Short:                      "Query the prover store",
		SuggestionsMinimumDistance: 2,
	}

	proverQueryCmd.AddCommand(
		CmdQueryProgram(newClient),
		CmdQueryRequest(newClient),
		CmdQueryProof(newClient),
	)

	return proverQueryCmd
}

type programOutput struct {
	ImageID types.ImageID `json:"image_id"`
	Size    int           `json:"size"`
	// Blake2b is the blake2b-256 digest of the program bytes.
	Blake2b string `json:"blake2b"`
}

type requestOutput struct {
	ImageID types.ImageID      `json:"image_id"`
	Request types.ProofRequest `json:"request"`
}

type proofOutput struct {
	ImageID types.ImageID     `json:"image_id"`
	Record  types.ProofRecord `json:"record"`
}

// CmdQueryProgram returns the command to query a registered program
func CmdQueryProgram(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "program",
		Short: "Query a registered program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, err := imageIDFlag(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, false)
			if err != nil {
				return err
			}

			program, err := client.Fetch(cmd.Context(), types.ProgramKey(imageID))
			if err != nil {
				return err
			}
			if program == nil {
				return types.ErrProgramDoesNotExist.Wrapf("image id %s", imageID)
			}

			if out, _ := cmd.Flags().GetString(FlagOutput); out != "" {
				if err := os.WriteFile(out, program, 0o644); err != nil {
					return fmt.Errorf("failed to write program: %w", err)
				}
			}

			digest := blake2b.Sum256(program)
			return printJSON(cmd, programOutput{ImageID: imageID, Size: len(program), Blake2b: hex.EncodeToString(digest[:])})
		},
	}

	cmd.Flags().String(FlagImageID, "", "Hex image id of the program")
	cmd.Flags().String(FlagOutput, "", "Write the program bytes to this file")

	return cmd
}

// CmdQueryRequest returns the command to query the proof request on an image id
func CmdQueryRequest(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Query the proof request on an image id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, err := imageIDFlag(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, false)
			if err != nil {
				return err
			}

			bz, err := client.Fetch(cmd.Context(), types.ProofRequestKey(imageID))
			if err != nil {
				return err
			}
			if bz == nil {
				return fmt.Errorf("no proof request for image id %s", imageID)
			}

			var request types.ProofRequest
			if err := types.Unmarshal(bz, &request); err != nil {
				return err
			}
			return printJSON(cmd, requestOutput{ImageID: imageID, Request: request})
		},
	}

	cmd.Flags().String(FlagImageID, "", "Hex image id of the program")

	return cmd
}

// CmdQueryProof returns the command to query the last verified proof of an image id
func CmdQueryProof(newClient ClientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proof",
		Short: "Query the last verified proof of an image id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, err := imageIDFlag(cmd)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, false)
			if err != nil {
				return err
			}

			bz, err := client.Fetch(cmd.Context(), types.ProofKey(imageID))
			if err != nil {
				return err
			}
			if bz == nil {
				return fmt.Errorf("no verified proof for image id %s", imageID)
			}

			var record types.ProofRecord
			if err := types.Unmarshal(bz, &record); err != nil {
				return err
			}

			if out, _ := cmd.Flags().GetString(FlagOutput); out != "" {
				wire, err := record.Proof.Marshal()
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, wire, 0o644); err != nil {
					return fmt.Errorf("failed to write proof: %w", err)
				}
			}
			return printJSON(cmd, proofOutput{ImageID: imageID, Record: record})
		},
	}

	cmd.Flags().String(FlagImageID, "", "Hex image id of the program")
	cmd.Flags().String(FlagOutput, "", "Write the proof wire bytes to this file")

	return cmd
}
