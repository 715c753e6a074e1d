package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"llmprobe/pkg/types"
)

// GenerateResponseFunc receives each streamed generation chunk. Returning an
// error stops the stream and is returned from GenerateStream.
type GenerateResponseFunc func(types.GenerateResponse) error

// ChatChunkFunc receives each streamed chat completion chunk.
type ChatChunkFunc func(types.ChatCompletionChunk) error

// GenerateStream calls POST /api/generate with streaming enabled and feeds
// every NDJSON chunk to fn until a chunk reports done or the body ends.
func (c *Client) GenerateStream(ctx context.Context, req *types.GenerateRequest, fn GenerateResponseFunc) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	r := *req
	r.Stream = true
	resp, err := c.send(ctx, http.MethodPost, pathGenerate, &r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return scanLines(ctx, resp.Body, func(line string) (bool, error) {
		var chunk types.GenerateResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return false, fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return false, &StreamError{Message: chunk.Error}
		}
		if err := fn(chunk); err != nil {
			return false, err
		}
		return chunk.Done, nil
	})
}

// chatStreamEvent adds the error member some servers put in a data line.
type chatStreamEvent struct {
	types.ChatCompletionChunk
	Error json.RawMessage `json:"error,omitempty"`
}

// ChatStream calls POST /v1/chat/completions with streaming enabled. The
// body is read as server-sent events: "data:" lines carry JSON chunks and
// "data: [DONE]" terminates. Un-prefixed JSON lines are accepted as well.
func (c *Client) ChatStream(ctx context.Context, req *types.ChatCompletionRequest, fn ChatChunkFunc) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()
	r := *req
	r.Stream = true
	resp, err := c.send(ctx, http.MethodPost, pathChatCompletions, &r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return scanLines(ctx, resp.Body, func(line string) (bool, error) {
		if strings.HasPrefix(line, ":") {
			return false, nil // SSE comment / heartbeat
		}
		sse := strings.HasPrefix(strings.ToLower(line), "data:")
		data := line
		if sse {
			data = strings.TrimSpace(line[len("data:"):])
			if data == "[DONE]" {
				return true, nil
			}
		}
		var ev chatStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			if sse {
				return false, fmt.Errorf("decode stream chunk: %w", err)
			}
			// event:, id:, retry: and other non-data fields
			c.log.Debug().Str("line", line).Msg("skipping stream line")
			return false, nil
		}
		if msg := errorMessage(ev.Error); msg != "" {
			return false, &StreamError{Message: msg}
		}
		return false, fn(ev.ChatCompletionChunk)
	})
}

// scanLines calls handle for each non-blank line of r until handle reports
// done, returns an error, or r is exhausted.
func scanLines(ctx context.Context, r io.Reader, handle func(line string) (done bool, err error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxChunkSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		done, err := handle(line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read stream: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// errorMessage extracts text from either "error":"msg" or "error":{"message":"msg"}.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
