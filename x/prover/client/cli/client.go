package cli

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"

	"github.com/proofmarket/prover/pkg/chain"
	"github.com/proofmarket/prover/x/prover/types"
)

// Client is the ledger access the commands need.
type Client interface {
	Fetch(ctx context.Context, key []byte) ([]byte, error)
	Submit(ctx context.Context, msg types.Msg) (*chain.TxResult, error)
	Address() sdk.AccAddress
}

// ClientFactory builds the client for a command. signing is false for read
// only commands, which must work without a key.
type ClientFactory func(cmd *cobra.Command, signing bool) (Client, error)

func imageIDFlag(cmd *cobra.Command) (types.ImageID, error) {
	raw, err := cmd.Flags().GetString(FlagImageID)
	if err != nil {
		return types.ImageID{}, err
	}
	if raw == "" {
		return types.ImageID{}, fmt.Errorf("--%s is required", FlagImageID)
	}
	return types.ParseImageID(raw)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bz))
	return err
}

// txOutput is printed after a committed tx.
type txOutput struct {
	Height int64  `json:"height"`
	TxHash string `json:"txhash"`
}

func printTxResult(cmd *cobra.Command, res *chain.TxResult) error {
	return printJSON(cmd, txOutput{Height: res.Height, TxHash: fmt.Sprintf("%X", res.Hash)})
}
