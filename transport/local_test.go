package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcess_PublishSubscribe(t *testing.T) {
	tr := NewInProcess(nil)
	defer tr.Close()
	ctx := context.Background()

	var got []byte
	_, err := tr.Subscribe(ctx, "hello.world", func(data []byte) { got = data })
	require.NoError(t, err)

	receipt, err := tr.Publish(ctx, "hello.world", []byte("payload"))
	require.NoError(t, err)
	assert.True(t, receipt.Delivered)
	assert.Equal(t, []byte("payload"), got)
}

func TestInProcess_NoSubscribersIsNoop(t *testing.T) {
	tr := NewInProcess(nil)
	defer tr.Close()

	receipt, err := tr.Publish(context.Background(), "nobody.listens", []byte("x"))
	require.NoError(t, err)
	assert.True(t, receipt.Delivered)
}

func TestInProcess_GlobPattern(t *testing.T) {
	tr := NewInProcess(nil)
	defer tr.Close()
	ctx := context.Background()

	var subjects []string
	_, err := tr.Subscribe(ctx, "events.*", func(data []byte) {
		subjects = append(subjects, string(data))
	})
	require.NoError(t, err)

	_, err = tr.Publish(ctx, "events.ping", []byte("ping"))
	require.NoError(t, err)
	_, err = tr.Publish(ctx, "events.pong", []byte("pong"))
	require.NoError(t, err)
	_, err = tr.Publish(ctx, "other.ping", []byte("other"))
	require.NoError(t, err)

	assert.Equal(t, []string{"ping", "pong"}, subjects)
}

func TestInProcess_InvalidPattern(t *testing.T) {
	tr := NewInProcess(nil)
	defer tr.Close()

	_, err := tr.Subscribe(context.Background(), "events.[", func([]byte) {})
	assert.Error(t, err)
}

func TestInProcess_StopDetachesHandler(t *testing.T) {
	tr := NewInProcess(nil)
	defer tr.Close()
	ctx := context.Background()

	calls := 0
	sub, err := tr.Subscribe(ctx, "s", func([]byte) { calls++ })
	require.NoError(t, err)

	_, err = tr.Publish(ctx, "s", []byte("1"))
	require.NoError(t, err)

	sub.Stop()
	sub.Stop() // idempotent

	_, err = tr.Publish(ctx, "s", []byte("2"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestInProcess_StopOnlyRemovesOwnHandler(t *testing.T) {
	tr := NewInProcess(nil)
	defer tr.Close()
	ctx := context.Background()

	a, b := 0, 0
	subA, err := tr.Subscribe(ctx, "s", func([]byte) { a++ })
	require.NoError(t, err)
	_, err = tr.Subscribe(ctx, "s", func([]byte) { b++ })
	require.NoError(t, err)

	subA.Stop()
	_, err = tr.Publish(ctx, "s", []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
}

func TestInProcess_HandlerPanicContained(t *testing.T) {
	tr := NewInProcess(nil)
	defer tr.Close()
	ctx := context.Background()

	delivered := false
	_, err := tr.Subscribe(ctx, "s", func([]byte) { panic("boom") })
	require.NoError(t, err)
	_, err = tr.Subscribe(ctx, "s", func([]byte) { delivered = true })
	require.NoError(t, err)

	_, err = tr.Publish(ctx, "s", []byte("x"))
	require.NoError(t, err)
	assert.True(t, delivered)
}

func TestInProcess_Closed(t *testing.T) {
	tr := NewInProcess(nil)
	require.NoError(t, tr.Close())

	_, err := tr.Publish(context.Background(), "s", []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = tr.Subscribe(context.Background(), "s", func([]byte) {})
	assert.ErrorIs(t, err, ErrClosed)
}
