// Package rpcclient is the JSON-RPC 2.0 client used by the CLI and by the
// daemon when it talks to a remote node.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds one HTTP round trip unless WithTimeout says
// otherwise.
const DefaultTimeout = 10 * time.Second

// MaxResponseBytes caps how much of a response body is read. Confirmation
// pages are the largest responses.
const MaxResponseBytes = 32 << 20

// Client posts JSON-RPC requests to one endpoint. It is safe for
// concurrent use.
type Client struct {
	endpoint string
	http     *http.Client
	lastID   atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Non-positive values keep
// DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client, for custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{endpoint: endpoint, http: &http.Client{Timeout: DefaultTimeout}}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Endpoint() string { return c.endpoint }

// RPCError is an error object returned by the server. Data carries the
// server's detailed error text when it sent one.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if s, ok := e.Data.(string); ok && s != "" && s != e.Message {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, s)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HasCode reports whether err is an RPCError with the given code.
func HasCode(err error, code int) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// Call invokes method with params and decodes the result into result,
// which may be nil to discard it. Server-side failures come back as
// *RPCError; everything else is a transport or decoding error.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	id := c.lastID.Add(1)
	body, err := json.Marshal(envelope{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", method, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(data) > MaxResponseBytes {
		return fmt.Errorf("response to %s exceeds %d bytes", method, MaxResponseBytes)
	}

	var out envelope
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.endpoint)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return out.Error
	}
	if out.ID != id {
		return fmt.Errorf("response id %d does not match request id %d", out.ID, id)
	}
	if result != nil && len(out.Result) > 0 {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
