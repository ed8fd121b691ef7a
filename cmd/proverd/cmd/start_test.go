package cmd

import (
	"context"
	"net"
	"testing"
	"time"

	abcicli "github.com/cometbft/cometbft/abci/client"
	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/stretchr/testify/require"

	"github.com/proofmarket/prover/app"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "tcp://" + addr
}

// startApp runs the start command until the returned stop is called.
func startApp(t *testing.T, home, addr string) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	root := NewRootCmd()
	root.SetArgs([]string{"start", "--home", home, "--chain-id", "prover-start-1", "--abci-addr", addr, "--inv-check-period", "1"})

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("start command did not stop")
			return nil
		}
	}
}

func dialApp(t *testing.T, addr string) abcicli.Client {
	t.Helper()
	var client abcicli.Client
	require.Eventually(t, func() bool {
		client = abcicli.NewSocketClient(addr, true)
		return client.Start() == nil
	}, 10*time.Second, 20*time.Millisecond)
	return client
}

func TestStartCmd_ServesApp(t *testing.T) {
	home := t.TempDir()
	addr := freeAddr(t)
	ctx := context.Background()

	stop := startApp(t, home, addr)
	client := dialApp(t, addr)

	_, err := client.InitChain(ctx, &abci.RequestInitChain{ChainId: "prover-start-1", InitialHeight: 1})
	require.NoError(t, err)
	res, err := client.FinalizeBlock(ctx, &abci.RequestFinalizeBlock{Height: 1, Time: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	require.NotEmpty(t, res.AppHash)
	_, err = client.Commit(ctx, &abci.RequestCommit{})
	require.NoError(t, err)

	require.NoError(t, client.Stop())
	require.NoError(t, stop())

	// committed state survives a restart
	stop = startApp(t, home, addr)
	client = dialApp(t, addr)
	info, err := client.Info(ctx, &abci.RequestInfo{})
	require.NoError(t, err)
	require.Equal(t, app.Name, info.Data)
	require.Equal(t, int64(1), info.LastBlockHeight)
	require.Equal(t, res.AppHash, info.LastBlockAppHash)

	require.NoError(t, client.Stop())
	require.NoError(t, stop())
}

func TestStartCmd_RequiresChainID(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"start", "--home", t.TempDir(), "--abci-addr", freeAddr(t)})
	require.ErrorContains(t, root.Execute(), "chain-id")
}
