package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/registry"
	"github.com/cuemby/clustercore/pkg/storage"
	"github.com/cuemby/clustercore/pkg/types"
)

func TestSaveCreatesNewVersionPerCall(t *testing.T) {
	r := registry.New(storage.NewMemoryStore())

	v1, err := r.Save("echoworker", &types.ProxyWorker{WorkerType: "pkg.EchoWorker"})
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	v2, err := r.Save("echoworker", &types.ProxyWorker{WorkerType: "pkg.EchoWorkerV2"})
	require.NoError(t, err)
	require.Equal(t, 2, v2)

	latest, version, err := r.Load("echoworker")
	require.NoError(t, err)
	require.Equal(t, 2, version)
	require.Equal(t, "pkg.EchoWorkerV2", latest.WorkerType)

	v1Bundle, err := r.LoadVersion("echoworker", 1)
	require.NoError(t, err)
	require.Equal(t, "pkg.EchoWorker", v1Bundle.WorkerType)
}

func TestLoadUnknownNameMisses(t *testing.T) {
	r := registry.New(storage.NewMemoryStore())
	_, _, err := r.Load("ghost")
	require.ErrorIs(t, err, types.ErrStoreMiss)
}
