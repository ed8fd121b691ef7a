package worker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proofmarket/prover/pkg/worker"
)

func TestCheckpoints_Persist(t *testing.T) {
	dir := t.TempDir()

	c, err := worker.OpenCheckpoints(dir)
	require.NoError(t, err)
	last, err := c.Load()
	require.NoError(t, err)
	require.Zero(t, last)

	require.NoError(t, c.Save(41))
	require.NoError(t, c.Save(42))
	require.NoError(t, c.Close())

	c, err = worker.OpenCheckpoints(dir)
	require.NoError(t, err)
	defer c.Close()

	last, err = c.Load()
	require.NoError(t, err)
	require.Equal(t, int64(42), last)
}

func TestResumeHeight(t *testing.T) {
	c := worker.NewMemCheckpoints()

	h, err := worker.ResumeHeight(c, 0)
	require.NoError(t, err)
	require.Zero(t, h, "no checkpoint starts at the tip")

	require.NoError(t, c.Save(10))
	h, err = worker.ResumeHeight(c, 0)
	require.NoError(t, err)
	require.Equal(t, int64(11), h)

	h, err = worker.ResumeHeight(c, 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), h)

	h, err = worker.ResumeHeight(nil, 0)
	require.NoError(t, err)
	require.Zero(t, h)
}
