// Package client talks to an Ollama-compatible inference API that also
// serves the OpenAI-compatible /v1/chat/completions endpoint.
//
// Every call is blocking and issues exactly one HTTP request. Deadlines come
// from the caller's context and, when configured, the per-client timeout.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llmprobe/pkg/types"
)

// Version is reported in the User-Agent header. Overridden at build time with
// -ldflags "-X llmprobe/internal/client.Version=...".
var Version = "0.1.0"

// RequestIDHeader carries a per-request UUID so server logs can be correlated.
const RequestIDHeader = "X-Request-Id"

const (
	pathTags            = "/api/tags"
	pathGenerate        = "/api/generate"
	pathChatCompletions = "/v1/chat/completions"

	maxErrorBody = 4096
	// maxChunkSize bounds a single NDJSON or SSE line.
	maxChunkSize = 1 << 20
)

// Client is safe for concurrent use, although llmprobe only ever issues one
// request at a time.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport, e.g. with httptest's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every call, streaming included. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger installs a structured logger for request diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New constructs a client for baseURL. An empty token sends no Authorization header.
func New(baseURL, token string, opts ...Option) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// Timeout=0: deadlines are carried by the request context so that
		// streamed bodies are bounded by the same budget.
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the normalized endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// WithoutAuth returns a copy of c that sends no Authorization header.
func (c *Client) WithoutAuth() *Client {
	cp := *c
	cp.token = ""
	return &cp
}

// WithTimeout returns a copy of c with a different per-call timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	cp := *c
	cp.timeout = d
	return &cp
}

func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// send issues the request and returns the response when the status is 2xx.
// Otherwise the body is drained into a *StatusError.
func (c *Client) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	rid := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, application/x-ndjson, text/event-stream")
	req.Header.Set("User-Agent", "llmprobe/"+Version)
	req.Header.Set(RequestIDHeader, rid)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Str("method", method).Str("path", path).Str("request_id", rid).Dur("dur", time.Since(start)).Err(err).Msg("request failed")
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.log.Debug().Str("method", method).Str("path", path).Str("request_id", rid).Int("status", resp.StatusCode).Dur("dur", time.Since(start)).Msg("response")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, newStatusError(resp, b)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctx.Err())
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// ListModels calls GET /api/tags.
func (c *Client) ListModels(ctx context.Context) (*types.TagsResponse, error) {
	var out types.TagsResponse
	if err := c.doJSON(ctx, http.MethodGet, pathTags, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Generate calls POST /api/generate with streaming disabled.
func (c *Client) Generate(ctx context.Context, req *types.GenerateRequest) (*types.GenerateResponse, error) {
	r := *req
	r.Stream = false
	var out types.GenerateResponse
	if err := c.doJSON(ctx, http.MethodPost, pathGenerate, &r, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &StreamError{Message: out.Error}
	}
	return &out, nil
}

// Chat calls POST /v1/chat/completions with streaming disabled.
func (c *Client) Chat(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	r := *req
	r.Stream = false
	var out types.ChatCompletionResponse
	if err := c.doJSON(ctx, http.MethodPost, pathChatCompletions, &r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
