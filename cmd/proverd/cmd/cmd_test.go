package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cast"
	"github.com/stretchr/testify/require"

	"github.com/proofmarket/prover/pkg/worker"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(&buf, "INFO", "json")
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", "image_id", "fac7")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"image_id":"fac7"`)

	_, err = NewLogger(&buf, "loud", "json")
	require.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	require.Error(t, err)
}

func TestConfigPrecedence(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, configFileName), []byte(`
node = "tcp://file:26657"
chain-id = "from-file"

[worker]
concurrency = 9
execution-timeout = "90s"
`), 0o644))

	t.Setenv("PROVERD_CHAIN_ID", "from-env")
	t.Setenv("PROVERD_WORKER_SUBMIT_RETRIES", "7")

	root := NewRootCmd()
	root.SetArgs([]string{"keys", "show", "--home", home, "--node", "tcp://flag:26657", "--mnemonic", testMnemonic})
	var out bytes.Buffer
	root.SetOut(&out)
	require.NoError(t, root.Execute())
	require.True(t, strings.HasPrefix(out.String(), "cosmos1"))

	v := newViper()
	v.Set(KeyHome, home)
	require.NoError(t, readConfigFile(v))
	require.Equal(t, "tcp://file:26657", v.GetString(KeyNode))
	require.Equal(t, "from-env", v.GetString(KeyChainID))
	require.Equal(t, 9, cast.ToInt(v.Get(KeyWorkerConcurrency)))
	require.Equal(t, "1m30s", cast.ToDuration(v.Get(KeyWorkerExecutionTimeout)).String())
	require.Equal(t, uint64(7), cast.ToUint64(v.Get(KeyWorkerSubmitRetries)))
}

func TestReadConfigFile_Missing(t *testing.T) {
	v := newViper()
	v.Set(KeyHome, t.TempDir())
	require.NoError(t, readConfigFile(v))
}

func TestNewSigner(t *testing.T) {
	v := newViper()
	_, err := newSigner(v)
	require.Error(t, err)

	v.Set(KeyMnemonic, testMnemonic)
	fromMnemonic, err := newSigner(v)
	require.NoError(t, err)

	v.Set(KeyKey, "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	fromKey, err := newSigner(v)
	require.NoError(t, err)
	require.NotEqual(t, fromMnemonic.Address(), fromKey.Address(), "a hex key takes precedence")
}

func TestKeysNew(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"keys", "new", "--home", t.TempDir()})
	require.NoError(t, root.Execute())

	var address, mnemonic string
	for _, line := range strings.Split(out.String(), "\n") {
		if v, ok := strings.CutPrefix(line, "address: "); ok {
			address = v
		}
		if v, ok := strings.CutPrefix(line, "mnemonic: "); ok {
			mnemonic = v
		}
	}
	require.Len(t, strings.Fields(mnemonic), 24)

	v := newViper()
	v.Set(KeyMnemonic, mnemonic)
	signer, err := newSigner(v)
	require.NoError(t, err)
	require.Equal(t, address, signer.Address().String())
}

func TestWorkerCmd_RequiresKey(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"worker", "--home", t.TempDir(), "--chain-id", "prover-1", "--listen-addr", ""})
	err := root.Execute()
	require.ErrorContains(t, err, "signing key is required")

	root = NewRootCmd()
	root.SetArgs([]string{"worker", "--home", t.TempDir(), "--engine", "process", "--listen-addr", ""})
	err = root.Execute()
	require.ErrorContains(t, err, "prover-path")
}

type staticStatus worker.Status

func (s staticStatus) Status() worker.Status { return worker.Status(s) }

func TestStatusRouter(t *testing.T) {
	router := NewStatusRouter(staticStatus{Running: true, LastHeight: 12, Fulfilled: 3})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status worker.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, int64(12), status.LastHeight)
	require.Equal(t, uint64(3), status.Fulfilled)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewStatusRouter(staticStatus{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
