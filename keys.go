package ae

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// KeyMaterial holds an agent's Ed25519 keypair with a precomputed
// base64-encoded public key. The encoded form is used as the envelope
// key identifier so verifiers need no separate key lookup.
//
// KeyMaterial is created once at client construction and is immutable
// afterwards.
type KeyMaterial struct {
	pub    ed25519.PublicKey
	pubB64 string
	priv   ed25519.PrivateKey
}

// GenerateKeyMaterial generates a new Ed25519 keypair from
// cryptographically secure randomness.
func GenerateKeyMaterial() (*KeyMaterial, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ae: generate keypair: %w", err)
	}
	return &KeyMaterial{
		pub:    pub,
		pubB64: base64.StdEncoding.EncodeToString(pub),
		priv:   priv,
	}, nil
}

// NewKeyMaterial builds KeyMaterial from raw key bytes. The private key
// may be either a 32-byte seed or Go's 64-byte private key form (seed
// plus public key suffix). The public key must match the private key.
func NewKeyMaterial(pub, priv []byte) (*KeyMaterial, error) {
	if len(pub) == 0 || len(priv) == 0 {
		return nil, fmt.Errorf("ae: key material requires both public and private key")
	}

	var privateKey ed25519.PrivateKey
	switch len(priv) {
	case ed25519.SeedSize:
		privateKey = ed25519.NewKeyFromSeed(priv)
	case ed25519.PrivateKeySize:
		privateKey = make(ed25519.PrivateKey, ed25519.PrivateKeySize)
		copy(privateKey, priv)
	default:
		return nil, fmt.Errorf("ae: private key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(priv))
	}

	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ae: public key must be %d bytes, got %d",
			ed25519.PublicKeySize, len(pub))
	}
	derived := privateKey.Public().(ed25519.PublicKey)
	if !bytes.Equal(derived, pub) {
		return nil, fmt.Errorf("ae: public key does not match private key")
	}

	publicKey := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(publicKey, pub)
	return &KeyMaterial{
		pub:    publicKey,
		pubB64: base64.StdEncoding.EncodeToString(publicKey),
		priv:   privateKey,
	}, nil
}

// KeyMaterialFromBase64 builds KeyMaterial from base64-encoded key
// strings, the form printed by ae-keygen.
func KeyMaterialFromBase64(pubB64, privB64 string) (*KeyMaterial, error) {
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return nil, fmt.Errorf("ae: decode public key: %w", err)
	}
	priv, err := base64.StdEncoding.DecodeString(privB64)
	if err != nil {
		return nil, fmt.Errorf("ae: decode private key: %w", err)
	}
	return NewKeyMaterial(pub, priv)
}

// PublicKey returns the raw Ed25519 public key.
func (k *KeyMaterial) PublicKey() ed25519.PublicKey {
	return k.pub
}

// PublicKeyBase64 returns the stable text form of the public key used
// as envelope key identifier.
func (k *KeyMaterial) PublicKeyBase64() string {
	return k.pubB64
}

// PrivateKeyBase64 returns the base64-encoded 64-byte private key.
func (k *KeyMaterial) PrivateKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.priv)
}

// Sign signs message bytes with the private key and returns the
// 64-byte signature.
func (k *KeyMaterial) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// Verify checks an Ed25519 signature against a message and public key.
// Returns false for any malformed input (wrong key or signature size).
func Verify(pub ed25519.PublicKey, message, signature []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, signature)
}
