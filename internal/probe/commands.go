package probe

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"llmprobe/internal/client"
	"llmprobe/internal/config"
	"llmprobe/pkg/types"
)

func newClient(cfg config.Config, timeout time.Duration) *client.Client {
	return client.New(cfg.APIURL, cfg.Token, client.WithLogger(logger), client.WithTimeout(timeout))
}

// listModels prints the /api/tags listing as a table.
func listModels(ctx context.Context, cfg config.Config, out io.Writer) error {
	tags, err := newClient(cfg, cfg.Timeout).ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	tw := tablewriter.NewWriter(out)
	tw.SetHeader([]string{"Name", "Family", "Parameters", "Quantization", "Size", "Modified"})
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)
	for _, m := range tags.Models {
		modified := m.ModifiedAt
		if t, err := time.Parse(time.RFC3339Nano, m.ModifiedAt); err == nil {
			modified = t.Local().Format("2006-01-02 15:04")
		}
		tw.Append([]string{m.Name, m.Details.Family, m.Details.ParameterSize, m.Details.QuantizationLevel, formatSize(m.Size), modified})
	}
	tw.Render()
	fmt.Fprintf(out, "\n%d model(s) at %s\n", len(tags.Models), cfg.APIURL)
	return nil
}

// generateOnce sends prompt to /api/generate and prints the reply.
func generateOnce(ctx context.Context, cfg config.Config, prompt, system string, stream bool, out io.Writer) error {
	c := newClient(cfg, cfg.GenerateTimeout)
	req := &types.GenerateRequest{Model: cfg.Model, Prompt: prompt, System: system}
	if !stream {
		resp, err := c.Generate(ctx, req)
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		fmt.Fprintln(out, strings.TrimSpace(resp.Response))
		return nil
	}
	var n int
	err := c.GenerateStream(ctx, req, func(chunk types.GenerateResponse) error {
		n += len(chunk.Response)
		_, werr := io.WriteString(out, chunk.Response)
		return werr
	})
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("generate: empty response")
	}
	return nil
}

// chatOnce sends prompt (after an optional system message) to
// /v1/chat/completions and prints the reply.
func chatOnce(ctx context.Context, cfg config.Config, prompt, system string, stream bool, out io.Writer) error {
	c := newClient(cfg, cfg.GenerateTimeout)
	req := &types.ChatCompletionRequest{Model: cfg.Model, Messages: messages(system, prompt)}
	if !stream {
		resp, err := c.Chat(ctx, req)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		fmt.Fprintln(out, strings.TrimSpace(resp.Content()))
		return nil
	}
	var n int
	err := c.ChatStream(ctx, req, func(chunk types.ChatCompletionChunk) error {
		s := chunk.Content()
		n += len(s)
		_, werr := io.WriteString(out, s)
		return werr
	})
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("chat: empty response")
	}
	return nil
}

func formatSize(n int64) string {
	const unit = 1000
	if n <= 0 {
		return ""
	}
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
