// SPDX-License-Identifier: MIT

// Package golang is a Go client for the keygate HTTP API.
package golang

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// maxBodySize bounds how much of a response is read.
const maxBodySize = 1 << 20

type Config struct {
	ServerURL  string
	AdminToken string        // only needed for Activity
	Timeout    time.Duration // default: 10s
	HTTPClient *http.Client  // overrides Timeout when set
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("keygate: %d %s (request %s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("keygate: %d %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	base       *url.URL
	adminToken string
	client     *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", cfg.ServerURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:       base,
		adminToken: cfg.AdminToken,
		client:     client,
	}, nil
}

// Sign signs message with an Ethereum private key.
func (c *Client) Sign(ctx context.Context, key, message string) (*Signature, error) {
	return get[Signature](ctx, c, "/sign", url.Values{"key": {key}, "message": {message}})
}

// Verify recovers the signer of an Ethereum signature.
func (c *Client) Verify(ctx context.Context, signature, message string) (*Verification, error) {
	return get[Verification](ctx, c, "/verify", url.Values{"signature": {signature}, "message": {message}})
}

// VerifyFrom is Verify with an expected signer: IsValid is false when the
// recovered address differs.
func (c *Client) VerifyFrom(ctx context.Context, signature, message, address string) (*Verification, error) {
	return get[Verification](ctx, c, "/verify", url.Values{
		"signature": {signature},
		"message":   {message},
		"address":   {address},
	})
}

// GenerateEthereum creates a mnemonic-backed Ethereum wallet.
func (c *Client) GenerateEthereum(ctx context.Context) (*EthereumWallet, error) {
	return get[EthereumWallet](ctx, c, "/generate-eth", nil)
}

// GenerateSui creates an Ed25519 Sui wallet.
func (c *Client) GenerateSui(ctx context.Context) (*SuiWallet, error) {
	return get[SuiWallet](ctx, c, "/generate-sui", nil)
}

// EthereumKeyToWallet derives the wallet of an Ethereum private key.
func (c *Client) EthereumKeyToWallet(ctx context.Context, privateKey string) (*EthereumKeyWallet, error) {
	return get[EthereumKeyWallet](ctx, c, "/eth-key-to-wallet", url.Values{"privateKey": {privateKey}})
}

// SuiKeyToAddress derives the address of a Sui private key.
func (c *Client) SuiKeyToAddress(ctx context.Context, privateKey string) (*SuiWallet, error) {
	return get[SuiWallet](ctx, c, "/sui-key-to-address", url.Values{"privateKey": {privateKey}})
}

// SuiSign signs message as a Sui personal message.
func (c *Client) SuiSign(ctx context.Context, key, message string) (*Signature, error) {
	return get[Signature](ctx, c, "/sui-sign", url.Values{"key": {key}, "message": {message}})
}

// SuiVerify checks a serialized Sui signature.
func (c *Client) SuiVerify(ctx context.Context, signature, message string) (*Verification, error) {
	return get[Verification](ctx, c, "/sui-verify", url.Values{"signature": {signature}, "message": {message}})
}

// Health returns nil when the server answers /health.
func (c *Client) Health(ctx context.Context) error {
	_, err := get[struct {
		Status string `json:"status"`
	}](ctx, c, "/health", nil)
	return err
}

// Activity lists the newest journal entries. limit <= 0 uses the server default.
func (c *Client) Activity(ctx context.Context, limit int) ([]Activity, error) {
	var params url.Values
	if limit > 0 {
		params = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	out, err := get[[]Activity](ctx, c, "/api/v1/admin/activity", params)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func get[T any](ctx context.Context, c *Client, path string, params url.Values) (*T, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if c.adminToken != "" && strings.HasPrefix(path, "/api/v1/admin/") {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			RequestID:  resp.Header.Get(requestIDHeader),
		}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if !env.Success {
		return nil, fmt.Errorf("server reported failure: %s", env.Error)
	}

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return &out, nil
}
