package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/orchestrator"
	"github.com/cuemby/clustercore/pkg/queue"
	"github.com/cuemby/clustercore/pkg/queue/local"
	"github.com/cuemby/clustercore/pkg/types"
)

func TestPublishAssignsJobID(t *testing.T) {
	ctx := context.Background()
	o := orchestrator.New(local.New())
	_, err := o.Register(ctx, "echo", queue.FIFO)
	require.NoError(t, err)

	jobID, err := o.Publish(ctx, "echo", &types.Job{SchemaName: "echo"}, orchestrator.PublishOpts{})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
}

func TestPublishReceiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	o := orchestrator.New(local.New())
	_, err := o.Register(ctx, "echo", queue.FIFO)
	require.NoError(t, err)

	sent := &types.Job{ID: "j1", SchemaName: "echo", Payload: map[string]interface{}{"message": "hi"}}
	jobID, err := o.Publish(ctx, "echo", sent, orchestrator.PublishOpts{})
	require.NoError(t, err)
	require.Equal(t, "j1", jobID)

	got, err := o.ReceiveMessage(ctx, "echo", false, 0)
	require.NoError(t, err)
	require.Equal(t, sent.ID, got.ID)
	require.Equal(t, sent.SchemaName, got.SchemaName)
	require.Equal(t, sent.Payload, got.Payload)
}

func TestPublishToUnregisteredQueueFails(t *testing.T) {
	ctx := context.Background()
	o := orchestrator.New(local.New())
	_, err := o.Publish(ctx, "ghost", &types.Job{}, orchestrator.PublishOpts{})
	require.ErrorIs(t, err, queue.ErrNoQueue)
}

func TestJobResultCacheRoundTrip(t *testing.T) {
	o := orchestrator.New(local.New())
	require.NoError(t, o.StoreJobResult("j1", map[string]interface{}{"echoed": "hi"}))

	output, found, err := o.GetJobResult("j1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "hi", output["echoed"])
}

func TestMoveToDLQ(t *testing.T) {
	ctx := context.Background()
	o := orchestrator.New(local.New())
	_, err := o.Register(ctx, "echo", queue.FIFO)
	require.NoError(t, err)

	require.NoError(t, o.MoveToDLQ(ctx, "echo", []byte("poison")))

	n, err := o.CountQueueMessages(ctx, "echo.dlq")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
