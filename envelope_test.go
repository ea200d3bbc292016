package ae

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- NewEnvelope ---

func TestNewEnvelope_PopulatesFields(t *testing.T) {
	env, err := NewEnvelope("alpha", "hello.world", map[string]any{"msg": "hi"}, []string{"greeting"}, "key123")
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.NotEmpty(t, env.Nonce)
	assert.Equal(t, "alpha", env.Producer)
	assert.Equal(t, "hello.world", env.Subject)
	assert.Equal(t, []string{"greeting"}, env.Labels)
	assert.Equal(t, "key123", env.KeyID)
	assert.NotZero(t, env.Timestamp)
	assert.Empty(t, env.Sig)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "hi", payload["msg"])
}

func TestNewEnvelope_DefaultLabels(t *testing.T) {
	env, err := NewEnvelope("alpha", "s", "payload", nil, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, env.Labels)
}

func TestNewEnvelope_UnmarshalablePayload(t *testing.T) {
	_, err := NewEnvelope("alpha", "s", make(chan int), nil, "k")
	assert.Error(t, err)
}

// --- Sign / Verify ---

func TestEnvelope_SignAndVerify(t *testing.T) {
	keys, err := GenerateKeyMaterial()
	require.NoError(t, err)

	env, err := NewEnvelope("alpha", "hello.world", map[string]any{"n": 1}, nil, keys.PublicKeyBase64())
	require.NoError(t, err)

	require.NoError(t, env.Sign(keys))
	assert.True(t, env.Signed())

	ok, err := env.Verify(keys.PublicKey())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnvelope_VerifyDetectsTamper(t *testing.T) {
	keys, err := GenerateKeyMaterial()
	require.NoError(t, err)

	env, err := NewEnvelope("alpha", "hello.world", map[string]any{"n": 1}, nil, keys.PublicKeyBase64())
	require.NoError(t, err)
	require.NoError(t, env.Sign(keys))

	env.Subject = "evil.subject"
	ok, err := env.Verify(keys.PublicKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnvelope_SignRejectsKeyMismatch(t *testing.T) {
	keys, err := GenerateKeyMaterial()
	require.NoError(t, err)

	env, err := NewEnvelope("alpha", "s", "p", nil, "some-other-key")
	require.NoError(t, err)

	assert.Error(t, env.Sign(keys))
}

// --- SigningBytes ---

func TestEnvelope_SigningBytesExcludesSignature(t *testing.T) {
	keys, err := GenerateKeyMaterial()
	require.NoError(t, err)

	env, err := NewEnvelope("alpha", "s", "p", nil, keys.PublicKeyBase64())
	require.NoError(t, err)

	before, err := env.SigningBytes()
	require.NoError(t, err)

	require.NoError(t, env.Sign(keys))

	after, err := env.SigningBytes()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEnvelope_SigningBytesDeterministic(t *testing.T) {
	env, err := NewEnvelope("alpha", "s", map[string]any{"b": 2, "a": 1, "c": 3}, nil, "k")
	require.NoError(t, err)

	first, err := env.SigningBytes()
	require.NoError(t, err)
	second, err := env.SigningBytes()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// --- Encode / Decode ---

func TestEnvelope_EncodeRequiresSignature(t *testing.T) {
	env, err := NewEnvelope("alpha", "s", "p", nil, "k")
	require.NoError(t, err)

	_, err = env.Encode()
	assert.Error(t, err)
}

func TestEnvelope_EncodeDecode(t *testing.T) {
	keys, err := GenerateKeyMaterial()
	require.NoError(t, err)

	env, err := NewEnvelope("alpha", "hello.world", map[string]any{"msg": "hi"}, []string{"x"}, keys.PublicKeyBase64())
	require.NoError(t, err)
	require.NoError(t, env.Sign(keys))

	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, env.Sig, decoded.Sig)

	ok, err := decoded.Verify(keys.PublicKey())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecodeEnvelope_Garbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	assert.Error(t, err)
}
