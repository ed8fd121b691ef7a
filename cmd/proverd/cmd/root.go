package cmd

import (
	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/proofmarket/prover/x/prover/client/cli"
)

// NewRootCmd creates the proverd root command.
func NewRootCmd() *cobra.Command {
	v := newViper()
	logger := log.NewNopLogger()

	rootCmd := &cobra.Command{
		Use:   "proverd",
		Short: "Verifiable compute marketplace client and prover worker",
		Long: `proverd registers programs, posts proof requests with an escrowed reward and
runs the worker that executes requested programs and submits their proofs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())

			if err := readConfigFile(v); err != nil {
				return err
			}

			l, err := NewLogger(cmd.ErrOrStderr(), v.GetString(KeyLogLevel), v.GetString(KeyLogFormat))
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(KeyHome, DefaultHome, "Directory for config and worker data")
	flags.String(KeyNode, defaultNode, "CometBFT RPC endpoint of a ledger node")
	flags.String(KeyChainID, "", "Chain id signed into transactions")
	flags.String(KeyKey, "", "Hex encoded secp256k1 private key")
	flags.String(KeyMnemonic, "", "BIP39 mnemonic of the signing account")
	flags.String(KeyLogLevel, "info", "Log level (trace|debug|info|warn|error)")
	flags.String(KeyLogFormat, "plain", "Log format (plain|json)")
	if err := bindFlags(v, flags, "", KeyHome, KeyNode, KeyChainID, KeyKey, KeyMnemonic, KeyLogLevel, KeyLogFormat); err != nil {
		panic(err)
	}

	factory := clientFactory(v, func() log.Logger { return logger })

	rootCmd.AddCommand(cli.GetTxCmd(factory)...)
	rootCmd.AddCommand(
		cli.GetQueryCmd(factory),
		WorkerCmd(v, func() log.Logger { return logger }),
		StartCmd(v, func() log.Logger { return logger }),
		KeysCmd(v),
	)

	return rootCmd
}
