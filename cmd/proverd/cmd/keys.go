package cmd

import (
	"fmt"

	"github.com/cosmos/go-bip39"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proofmarket/prover/pkg/chain"
)

// mnemonicEntropySize is the entropy of generated mnemonics, 24 words.
const mnemonicEntropySize = 256

// KeysCmd returns the key management commands.
func KeysCmd(v *viper.Viper) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate and inspect signing keys",
	}

	keysCmd.AddCommand(
		&cobra.Command{
			Use:   "new",
			Short: "Generate a new mnemonic and print its address",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				entropy, err := bip39.NewEntropy(mnemonicEntropySize)
				if err != nil {
					return err
				}
				mnemonic, err := bip39.NewMnemonic(entropy)
				if err != nil {
					return err
				}
				signer, err := chain.NewSignerFromMnemonic(mnemonic)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "address: %s\n", signer.Address())
				fmt.Fprintf(out, "mnemonic: %s\n", mnemonic)
				fmt.Fprintln(out, "\nKeep the mnemonic safe: it is the only way to recover this account.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the address of the configured key",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				signer, err := newSigner(v)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), signer.Address().String())
				return nil
			},
		},
	)

	return keysCmd
}
