package cmd

import (
	"fmt"
	"path/filepath"

	"cosmossdk.io/log"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proofmarket/prover/pkg/chain"
	"github.com/proofmarket/prover/pkg/engine"
	"github.com/proofmarket/prover/pkg/worker"
	"github.com/proofmarket/prover/x/prover/receipt"
)

const (
	flagConcurrency      = "concurrency"
	flagExecutionTimeout = "execution-timeout"
	flagSubmitRetries    = "submit-retries"
	flagSubmitBackoff    = "submit-backoff"
	flagStartHeight      = "start-height"
	flagPollInterval     = "poll-interval"
	flagEngine           = "engine"
	flagProverPath       = "prover-path"
	flagSegmentCycles    = "segment-cycles"
	flagListenAddr       = "listen-addr"
	flagDataDir          = "data-dir"

	engineWASM    = "wasm"
	engineProcess = "process"
)

// WorkerCmd returns the command that runs the fulfillment worker.
func WorkerCmd(v *viper.Viper, logger func() log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Fulfill proof requests from finalized blocks",
		Long: `Follow finalized blocks, execute the program of every proof request and submit
the resulting proof. Rewards are paid to the worker's account.

Example:
  $ proverd worker --node tcp://localhost:26657 --chain-id prover-1 --key <hex>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd, v, logger())
		},
	}

	defaults := worker.DefaultConfig()
	feedDefaults := chain.DefaultFeedConfig()

	cmd.Flags().Int(flagConcurrency, defaults.Concurrency, "Proof requests executed at once")
	cmd.Flags().Duration(flagExecutionTimeout, defaults.ExecutionTimeout, "Time limit of one program execution")
	cmd.Flags().Uint64(flagSubmitRetries, defaults.SubmitMaxRetries, "Resubmissions after transport failures")
	cmd.Flags().Duration(flagSubmitBackoff, defaults.SubmitBackoff, "First delay between resubmissions")
	cmd.Flags().Int64(flagStartHeight, 0, "First block to process; defaults to the checkpoint or the current tip")
	cmd.Flags().Duration(flagPollInterval, feedDefaults.PollInterval, "Minimum delay between polls for new blocks")
	cmd.Flags().String(flagEngine, engineWASM, "Execution engine (wasm|process)")
	cmd.Flags().String(flagProverPath, "", "Prover executable for the process engine")
	cmd.Flags().Uint64(flagSegmentCycles, receipt.DefaultSegmentCycles, "Trace length per receipt segment of the wasm engine")
	cmd.Flags().String(flagListenAddr, ":26661", "Address of the metrics and status server, empty to disable")
	cmd.Flags().String(flagDataDir, "", "Checkpoint directory; defaults to <home>/data")

	if err := bindFlags(v, cmd.Flags(), "worker.",
		flagConcurrency, flagExecutionTimeout, flagSubmitRetries, flagSubmitBackoff, flagStartHeight,
		flagPollInterval, flagEngine, flagProverPath, flagSegmentCycles, flagListenAddr, flagDataDir,
	); err != nil {
		panic(err)
	}

	return cmd
}

func runWorker(cmd *cobra.Command, v *viper.Viper, logger log.Logger) error {
	cfg := worker.Config{
		Concurrency:      cast.ToInt(v.Get(KeyWorkerConcurrency)),
		ExecutionTimeout: cast.ToDuration(v.Get(KeyWorkerExecutionTimeout)),
		SubmitMaxRetries: cast.ToUint64(v.Get(KeyWorkerSubmitRetries)),
		SubmitBackoff:    cast.ToDuration(v.Get(KeyWorkerSubmitBackoff)),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	eng, err := newEngine(v, cfg.Concurrency, logger)
	if err != nil {
		return err
	}

	signer, err := newSigner(v)
	if err != nil {
		return err
	}
	chainID := v.GetString(KeyChainID)
	if chainID == "" {
		return fmt.Errorf("--%s is required", KeyChainID)
	}

	rpc, err := chain.Dial(v.GetString(KeyNode))
	if err != nil {
		return err
	}
	client := chain.NewClient(rpc, signer, chainID, logger)

	dataDir := v.GetString(KeyWorkerDataDir)
	if dataDir == "" {
		dataDir = filepath.Join(v.GetString(KeyHome), "data")
	}
	checkpoints, err := worker.OpenCheckpoints(dataDir)
	if err != nil {
		return err
	}
	defer checkpoints.Close()

	start, err := worker.ResumeHeight(checkpoints, cast.ToInt64(v.Get(KeyWorkerStartHeight)))
	if err != nil {
		return err
	}

	feedCfg := chain.DefaultFeedConfig()
	if interval := cast.ToDuration(v.Get(KeyWorkerPollInterval)); interval > 0 {
		feedCfg.PollInterval = interval
	}
	feed := chain.NewFeed(rpc, start, feedCfg, logger)

	w, err := worker.New(client, feed, eng, checkpoints, cfg, logger)
	if err != nil {
		return err
	}

	if addr := v.GetString(KeyWorkerListenAddr); addr != "" {
		serveStatus(cmd.Context(), addr, w, logger)
	}

	logger.Info("starting worker", "address", signer.Address().String(), "start_height", start, "data_dir", dataDir)
	return w.Run(cmd.Context())
}

// newEngine builds the configured engine. The wasm engine gets one live
// instance per worker task, so abandoned runs hold back new executions.
func newEngine(v *viper.Viper, concurrency int, logger log.Logger) (engine.Engine, error) {
	switch name := v.GetString(KeyWorkerEngine); name {
	case engineWASM:
		cfg := engine.DefaultWASMConfig()
		cfg.MaxRuns = concurrency
		if cycles := cast.ToUint64(v.Get(KeyWorkerSegmentCycles)); cycles > 0 {
			cfg.SegmentCycles = cycles
		}
		return engine.NewWASM(cfg, logger), nil
	case engineProcess:
		path := v.GetString(KeyWorkerProverPath)
		if path == "" {
			return nil, fmt.Errorf("--%s is required by the %s engine", flagProverPath, engineProcess)
		}
		return engine.NewProcess(engine.ProcessConfig{Path: path}, logger), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}
