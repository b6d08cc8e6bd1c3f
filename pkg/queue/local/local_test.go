package local

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/clustercore/pkg/queue"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.FIFO))

	require.NoError(t, b.Push(ctx, "q", []byte("a"), nil))
	require.NoError(t, b.Push(ctx, "q", []byte("b"), nil))
	require.NoError(t, b.Push(ctx, "q", []byte("c"), nil))

	for _, want := range []string{"a", "b", "c"} {
		got, err := b.Pop(ctx, "q", false, 0)
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}

func TestLIFOOrder(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.LIFO))

	require.NoError(t, b.Push(ctx, "q", []byte("a"), nil))
	require.NoError(t, b.Push(ctx, "q", []byte("b"), nil))
	require.NoError(t, b.Push(ctx, "q", []byte("c"), nil))

	for _, want := range []string{"c", "b", "a"} {
		got, err := b.Pop(ctx, "q", false, 0)
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}

func TestPriorityOrder(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.Priority))

	pushWithPriority := func(data string, p int) {
		pp := p
		require.NoError(t, b.Push(ctx, "q", []byte(data), &pp))
	}
	pushWithPriority("A", 1)
	pushWithPriority("B", 10)
	pushWithPriority("C", 5)

	for _, want := range []string{"B", "C", "A"} {
		got, err := b.Pop(ctx, "q", false, 0)
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}

func TestPriorityTieBreakIsInsertionOrder(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.Priority))

	require.NoError(t, b.Push(ctx, "q", []byte("first"), nil))
	require.NoError(t, b.Push(ctx, "q", []byte("second"), nil))

	got, err := b.Pop(ctx, "q", false, 0)
	require.NoError(t, err)
	require.Equal(t, "first", string(got))
}

func TestPopNonBlockingEmptyReturnsErrEmpty(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.FIFO))

	_, err := b.Pop(ctx, "q", false, 0)
	require.ErrorIs(t, err, queue.ErrEmpty)
}

func TestPopBlocksUntilPush(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.FIFO))

	done := make(chan []byte, 1)
	go func() {
		data, err := b.Pop(ctx, "q", true, 2*time.Second)
		require.NoError(t, err)
		done <- data
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, b.Push(ctx, "q", []byte("late"), nil))

	select {
	case data := <-done:
		require.Equal(t, "late", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("blocking pop did not return after push")
	}
}

func TestPopBlockingTimeoutExpires(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.FIFO))

	_, err := b.Pop(ctx, "q", true, 50*time.Millisecond)
	require.ErrorIs(t, err, queue.ErrEmpty)
}

func TestDeclareQueueIsIdempotent(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.FIFO))
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.FIFO))

	_, err := b.QSize(ctx, "q")
	require.NoError(t, err)
}

func TestDeclareQueueRejectsTypeChange(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.FIFO))
	err := b.DeclareQueue(ctx, "q", queue.LIFO)
	require.ErrorIs(t, err, queue.ErrQueueExists)
}

func TestCleanDiscardsQueuedItems(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.DeclareQueue(ctx, "q", queue.FIFO))
	require.NoError(t, b.Push(ctx, "q", []byte("a"), nil))
	require.NoError(t, b.Push(ctx, "q", []byte("b"), nil))

	n, err := b.Clean(ctx, "q")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	size, err := b.QSize(ctx, "q")
	require.NoError(t, err)
	require.Equal(t, 0, size)
}
