package ae

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical signed message unit exchanged between
// agents. An Envelope is complete only after signing; transports only
// ever see the encoded form of a signed envelope.
//
// The signature covers the canonical JSON of every field except Sig
// itself, so any mutation of the envelope after signing invalidates it.
type Envelope struct {
	ID        string          `json:"id"`
	Producer  string          `json:"producer"`
	Subject   string          `json:"subject"`
	Payload   json.RawMessage `json:"payload"`
	Labels    []string        `json:"labels"`
	KeyID     string          `json:"key_id"`
	Timestamp int64           `json:"ts"`
	Nonce     string          `json:"nonce"`
	Sig       string          `json:"sig,omitempty"`
}

// NewEnvelope builds an unsigned envelope. The payload is marshaled to
// JSON immediately so later signing and delivery see identical bytes.
// Empty labels default to ["default"].
func NewEnvelope(producer, subject string, payload any, labels []string, keyID string) (*Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ae: marshal payload: %w", err)
	}
	if len(labels) == 0 {
		labels = []string{"default"}
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Producer:  producer,
		Subject:   subject,
		Payload:   body,
		Labels:    labels,
		KeyID:     keyID,
		Timestamp: time.Now().Unix(),
		Nonce:     uuid.NewString(),
	}, nil
}

// SigningBytes returns the canonical byte encoding the signature
// covers: canonical JSON of the envelope with the signature cleared.
func (e *Envelope) SigningBytes() ([]byte, error) {
	unsigned := *e
	unsigned.Sig = ""
	return canonicalJSON(unsigned)
}

// Sign computes and attaches the signature. The key identifier of the
// envelope must match the signing key.
func (e *Envelope) Sign(keys *KeyMaterial) error {
	if e.KeyID != keys.PublicKeyBase64() {
		return fmt.Errorf("ae: envelope key id does not match signing key")
	}
	msg, err := e.SigningBytes()
	if err != nil {
		return err
	}
	e.Sig = base64.StdEncoding.EncodeToString(keys.Sign(msg))
	return nil
}

// Signed reports whether the envelope carries a signature.
func (e *Envelope) Signed() bool {
	return e.Sig != ""
}

// Verify checks the envelope signature against the given public key.
func (e *Envelope) Verify(pub ed25519.PublicKey) (bool, error) {
	if !e.Signed() {
		return false, fmt.Errorf("ae: envelope is unsigned")
	}
	sig, err := base64.StdEncoding.DecodeString(e.Sig)
	if err != nil {
		return false, fmt.Errorf("ae: decode signature: %w", err)
	}
	msg, err := e.SigningBytes()
	if err != nil {
		return false, err
	}
	return Verify(pub, msg, sig), nil
}

// Encode serializes the envelope for transport delivery. Encoding an
// unsigned envelope is an error: unsigned envelopes must never reach a
// transport.
func (e *Envelope) Encode() ([]byte, error) {
	if !e.Signed() {
		return nil, fmt.Errorf("ae: refusing to encode unsigned envelope for subject %q", e.Subject)
	}
	return json.Marshal(e)
}

// DecodeEnvelope parses a delivered envelope from its wire form.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("ae: decode envelope: %w", err)
	}
	return &e, nil
}

// canonicalJSON produces a deterministic JSON serialization: the value
// is round-tripped through generic maps so encoding/json emits object
// keys in sorted order at every nesting level.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ae: canonical marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("ae: canonical rebuild: %w", err)
	}
	return json.Marshal(generic)
}
