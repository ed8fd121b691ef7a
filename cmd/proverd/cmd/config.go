package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/proofmarket/prover/pkg/chain"
	"github.com/proofmarket/prover/x/prover/client/cli"
)

// Configuration keys. Each is also a flag name and, upper-cased with the
// PROVERD_ prefix and dots and dashes as underscores, an environment variable.
const (
	KeyHome      = "home"
	KeyNode      = "node"
	KeyChainID   = "chain-id"
	KeyKey       = "key"
	KeyMnemonic  = "mnemonic"
	KeyLogLevel  = "log-level"
	KeyLogFormat = "log-format"

	KeyWorkerConcurrency      = "worker.concurrency"
	KeyWorkerExecutionTimeout = "worker.execution-timeout"
	KeyWorkerSubmitRetries    = "worker.submit-retries"
	KeyWorkerSubmitBackoff    = "worker.submit-backoff"
	KeyWorkerStartHeight      = "worker.start-height"
	KeyWorkerPollInterval     = "worker.poll-interval"
	KeyWorkerEngine           = "worker.engine"
	KeyWorkerProverPath       = "worker.prover-path"
	KeyWorkerSegmentCycles    = "worker.segment-cycles"
	KeyWorkerListenAddr       = "worker.listen-addr"
	KeyWorkerDataDir          = "worker.data-dir"

	KeyStartABCIAddr       = "start.abci-addr"
	KeyStartInvCheckPeriod = "start.inv-check-period"
	KeyStartDBBackend      = "start.db-backend"
	KeyStartDataDir        = "start.data-dir"
)

const (
	envPrefix      = "PROVERD"
	configFileName = "config.toml"
	defaultNode    = "tcp://localhost:26657"
)

// DefaultHome is the default directory for config and worker data.
var DefaultHome = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".proverd"
	}
	return filepath.Join(home, ".proverd")
}()

// newViper returns a viper instance reading PROVERD_ environment variables.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// readConfigFile loads <home>/config.toml if it exists. Flags and
// environment variables take precedence over the file.
func readConfigFile(v *viper.Viper) error {
	path := filepath.Join(v.GetString(KeyHome), configFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v.SetConfigType("toml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// bindFlags binds the named flags to the viper keys of the same name,
// prefixed with prefix for command scoped keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, prefix string, names ...string) error {
	for _, name := range names {
		if err := v.BindPFlag(prefix+name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// NewLogger builds the process logger from a level name and a format
// ("json" or "plain").
func NewLogger(w io.Writer, level, format string) (log.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := []log.Option{log.LevelOption(lvl)}
	switch format {
	case "json":
		opts = append(opts, log.OutputJSONOption())
	case "plain", "":
		opts = append(opts, log.ColorOption(false))
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	return log.NewLogger(w, opts...), nil
}

// newSigner loads the signing key from the configuration. A hex key takes
// precedence over a mnemonic.
func newSigner(v *viper.Viper) (*chain.Signer, error) {
	if key := v.GetString(KeyKey); key != "" {
		return chain.NewSignerFromHex(key)
	}
	if mnemonic := v.GetString(KeyMnemonic); mnemonic != "" {
		return chain.NewSignerFromMnemonic(mnemonic)
	}
	return nil, fmt.Errorf("a signing key is required: set --%s or --%s", KeyKey, KeyMnemonic)
}

// clientFactory dials the configured node for each command.
func clientFactory(v *viper.Viper, logger func() log.Logger) cli.ClientFactory {
	return func(_ *cobra.Command, signing bool) (cli.Client, error) {
		var signer *chain.Signer
		if signing {
			s, err := newSigner(v)
			if err != nil {
				return nil, err
			}
			signer = s
		}

		chainID := v.GetString(KeyChainID)
		if signing && chainID == "" {
			return nil, fmt.Errorf("--%s is required", KeyChainID)
		}

		rpc, err := chain.Dial(v.GetString(KeyNode))
		if err != nil {
			return nil, err
		}
		return chain.NewClient(rpc, signer, chainID, logger()), nil
	}
}
