package probe

import (
	"context"
	"fmt"
	"time"

	"llmprobe/internal/client"
)

// waitForAPI polls GET /api/tags until the server answers with any HTTP
// status (401 included) or timeout elapses.
func waitForAPI(ctx context.Context, c *client.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	poll := c.WithTimeout(2 * time.Second)
	for {
		_, err := poll.ListModels(ctx)
		if err == nil || client.StatusCode(err) != 0 {
			return nil
		}
		debug("waiting for %s: %v", c.BaseURL(), err)
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return fmt.Errorf("timed out after %s waiting for %s", timeout, c.BaseURL())
		}
	}
}
