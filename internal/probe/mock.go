package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"llmprobe/internal/mockapi"
)

// mockOptions configures `llmprobe mock`.
type mockOptions struct {
	Addr    string
	API     mockapi.Options
	Verbose bool
}

// serveMock runs the mock API until ctx is canceled (Ctrl+C / SIGTERM).
func serveMock(ctx context.Context, o mockOptions, out io.Writer) error {
	if o.Verbose {
		l := logger
		o.API.Logger = &l
	}
	ln, err := net.Listen("tcp", o.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", o.Addr, err)
	}
	srv := &http.Server{
		Handler:           mockapi.NewMux(o.API),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// The first line is machine-readable so scripts can discover the port.
	fmt.Fprintf(out, "listening on http://%s\n", ln.Addr().String())
	info("mock API serving %d model(s), auth=%t", max(len(o.API.Models), 1), o.API.Token != "")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		warn("graceful shutdown error: %v", err)
		return err
	}
	return nil
}
