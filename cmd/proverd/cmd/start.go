package cmd

import (
	"fmt"
	"path/filepath"

	"cosmossdk.io/log"
	abciserver "github.com/cometbft/cometbft/abci/server"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proofmarket/prover/app"
	"github.com/proofmarket/prover/x/prover/receipt"
)

const (
	flagABCIAddr       = "abci-addr"
	flagInvCheckPeriod = "inv-check-period"
	flagDBBackend      = "db-backend"

	defaultABCIAddr = "tcp://127.0.0.1:26658"
	appDBName       = "application"
)

// StartCmd returns the command that serves the ledger application to a
// CometBFT node over the ABCI socket protocol.
func StartCmd(v *viper.Viper, logger func() log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Serve the ledger application to a CometBFT node",
		Long: `Open the application database under <home>/data and serve the prover ledger
application on an ABCI socket. Run a CometBFT node with --proxy_app pointing at
the same address to produce blocks.

Example:
  $ proverd start --chain-id prover-1 --abci-addr tcp://127.0.0.1:26658
  $ cometbft node --proxy_app tcp://127.0.0.1:26658`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd, v, logger())
		},
	}

	cmd.Flags().String(flagABCIAddr, defaultABCIAddr, "Address the ABCI socket server listens on")
	cmd.Flags().Uint(flagInvCheckPeriod, 0, "Assert the module invariants every this many blocks, 0 to disable")
	cmd.Flags().String(flagDBBackend, string(dbm.GoLevelDBBackend), "Application database backend")
	cmd.Flags().String(flagDataDir, "", "Application database directory; defaults to <home>/data")

	if err := bindFlags(v, cmd.Flags(), "start.", flagABCIAddr, flagInvCheckPeriod, flagDBBackend, flagDataDir); err != nil {
		panic(err)
	}

	return cmd
}

func runStart(cmd *cobra.Command, v *viper.Viper, logger log.Logger) error {
	chainID := v.GetString(KeyChainID)
	if chainID == "" {
		return fmt.Errorf("--%s is required", KeyChainID)
	}

	dataDir := v.GetString(KeyStartDataDir)
	if dataDir == "" {
		dataDir = filepath.Join(v.GetString(KeyHome), "data")
	}
	db, err := dbm.NewDB(appDBName, dbm.BackendType(v.GetString(KeyStartDBBackend)), dataDir)
	if err != nil {
		return fmt.Errorf("failed to open application db: %w", err)
	}
	defer db.Close()

	a, err := app.New(logger, db, chainID, receipt.Verifier{},
		app.WithInvCheckPeriod(cast.ToUint(v.Get(KeyStartInvCheckPeriod))))
	if err != nil {
		return err
	}

	addr := v.GetString(KeyStartABCIAddr)
	srv, err := abciserver.NewServer(addr, "socket", a)
	if err != nil {
		return fmt.Errorf("failed to create abci server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start abci server: %w", err)
	}

	logger.Info("serving ledger application", "addr", addr, "chain_id", chainID, "height", a.LastBlockHeight(), "data_dir", dataDir)
	<-cmd.Context().Done()

	logger.Info("stopping ledger application", "height", a.LastBlockHeight())
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("failed to stop abci server: %w", err)
	}
	return nil
}
