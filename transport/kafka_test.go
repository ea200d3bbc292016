package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Without bootstrap brokers the transport runs in mock mode against an
// in-process bus, so the publish path is testable without a cluster.
func TestKafka_MockMode(t *testing.T) {
	tr := NewKafka(Config{})
	defer tr.Close()
	ctx := context.Background()

	var got []byte
	sub, err := tr.Subscribe(ctx, "hello.world", func(data []byte) { got = data })
	require.NoError(t, err)
	defer sub.Stop()

	receipt, err := tr.Publish(ctx, "hello.world", []byte("payload"))
	require.NoError(t, err)
	assert.True(t, receipt.Delivered)
	assert.Equal(t, []byte("payload"), got)
}

func TestKafka_RealModeHasWriter(t *testing.T) {
	tr := NewKafka(Config{Brokers: []string{"localhost:9092"}, GroupID: "workers"})
	defer tr.Close()

	assert.Nil(t, tr.mock)
	assert.NotNil(t, tr.writer)
	assert.Equal(t, "workers", tr.groupID)
}

func TestKafka_SetCredentialIsNoop(t *testing.T) {
	tr := NewKafka(Config{})
	defer tr.Close()
	tr.SetCredential("ignored")
}
