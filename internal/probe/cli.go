package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"llmprobe/internal/config"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

// MainWithArgs is a testable variant of Main that accepts args explicitly.
// It returns an exit code: 0 when everything passed, 1 when a check or
// request failed, 2 for usage errors.
func MainWithArgs(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return mainWith(ctx, args, os.Stdout, os.Stderr)
}

func mainWith(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := buildRootCmdWith(&config.Config{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if len(args) == 0 {
		_ = root.Usage()
		return ExitUsage
	}
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errChecksFailed):
		// the summary already said so
		return ExitFailed
	case isUsageError(err):
		fmt.Fprintln(stderr, "Error:", err.Error())
		return ExitUsage
	default:
		fmt.Fprintln(stderr, "Error:", err.Error())
		return ExitFailed
	}
}

// Main returns an exit code (0 for success, non-zero on error) for use by cmd/llmprobe.
func Main() int { return MainWithArgs(os.Args[1:]) }
