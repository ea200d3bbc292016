package ae

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/invictus-insights/aegnix-platform-sdk-ae/session"
)

// brokerClient speaks the ABI wire contract: challenge issuance,
// signature verification, session refresh and capability declaration,
// all HTTP+JSON under a configurable base URL.
type brokerClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// httpStatusError carries a non-2xx broker response so callers can wrap
// it into their typed error with status and body intact.
type httpStatusError struct {
	Status int
	Body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

type challengeResponse struct {
	Nonce string `json:"nonce"`
}

type verifyResponse struct {
	Verified  bool   `json:"verified"`
	SessionID string `json:"session_id"`
	session.Grant
}

// challenge requests a nonce for the agent id and returns its decoded
// bytes.
func (b *brokerClient) challenge(ctx context.Context, agentID string) ([]byte, error) {
	body, err := b.post(ctx, "/register", "", map[string]string{"ae_id": agentID})
	if err != nil {
		return nil, err
	}
	var resp challengeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse challenge response: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(resp.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode challenge nonce: %w", err)
	}
	return nonce, nil
}

// verify submits the signed nonce and returns the broker's verdict with
// the granted tokens.
func (b *brokerClient) verify(ctx context.Context, agentID, signedNonceB64 string) (*verifyResponse, error) {
	body, err := b.post(ctx, "/verify", "", map[string]string{
		"ae_id":            agentID,
		"signed_nonce_b64": signedNonceB64,
	})
	if err != nil {
		return nil, err
	}
	var resp verifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse verify response: %w", err)
	}
	return &resp, nil
}

// refresh exchanges the refresh token for a new grant.
func (b *brokerClient) refresh(ctx context.Context, sessionID, refreshToken string) (*session.Grant, error) {
	body, err := b.post(ctx, "/session/refresh", "", map[string]string{
		"session_id":    sessionID,
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}
	var grant session.Grant
	if err := json.Unmarshal(body, &grant); err != nil {
		return nil, fmt.Errorf("parse refresh response: %w", err)
	}
	return &grant, nil
}

// declareCapabilities advertises the agent's subject sets under the
// current access token.
func (b *brokerClient) declareCapabilities(ctx context.Context, token string, publishes, subscribes []string, meta map[string]any) error {
	if publishes == nil {
		publishes = []string{}
	}
	if subscribes == nil {
		subscribes = []string{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := b.post(ctx, "/ae/capabilities", token, map[string]any{
		"publishes":  publishes,
		"subscribes": subscribes,
		"meta":       meta,
	})
	return err
}

// post sends a JSON body and returns the response body. Non-2xx
// statuses become *httpStatusError; everything else is a transport or
// encoding failure.
func (b *brokerClient) post(ctx context.Context, path, token string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
