package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SelectsVariant(t *testing.T) {
	ctx := context.Background()

	tr, err := New(ctx, Config{Kind: KindInProcess})
	require.NoError(t, err)
	assert.IsType(t, &InProcess{}, tr)
	tr.Close()

	tr, err = New(ctx, Config{Kind: KindHTTP, BrokerURL: "http://broker:8080"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPStream{}, tr)
	tr.Close()

	// Mock modes: no project, no bootstrap brokers.
	tr, err = New(ctx, Config{Kind: KindPubSub})
	require.NoError(t, err)
	assert.IsType(t, &PubSub{}, tr)
	tr.Close()

	tr, err = New(ctx, Config{Kind: KindKafka})
	require.NoError(t, err)
	assert.IsType(t, &Kafka{}, tr)
	tr.Close()
}

func TestNew_DefaultKind(t *testing.T) {
	ctx := context.Background()

	tr, err := New(ctx, Config{BrokerURL: "http://broker:8080"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPStream{}, tr)
	tr.Close()

	tr, err = New(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &InProcess{}, tr)
	tr.Close()
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSubscription_Subject(t *testing.T) {
	tr := NewInProcess(nil)
	defer tr.Close()

	sub, err := tr.Subscribe(context.Background(), "events.*", func([]byte) {})
	require.NoError(t, err)
	assert.Equal(t, "events.*", sub.Subject())
}
