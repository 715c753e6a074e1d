package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"llmprobe/internal/client"
	"llmprobe/internal/config"
)

// Env is everything a check may use. It is shared by all checks of a run.
type Env struct {
	Config config.Config
	// Client authenticates and is bounded by Config.Timeout.
	Client *client.Client
	// Anon sends no Authorization header.
	Anon *client.Client
	// Gen authenticates and is bounded by Config.GenerateTimeout.
	Gen *client.Client
	Out *Reporter
	Log zerolog.Logger

	// Per-suite presentation, set by the runner.
	previewChars int
	maxListed    int
}

// NewEnv builds the clients for cfg. cfg must already be validated.
func NewEnv(cfg config.Config, out *Reporter, opts ...client.Option) *Env {
	base := append([]client.Option{client.WithLogger(logger), client.WithTimeout(cfg.Timeout)}, opts...)
	c := client.New(cfg.APIURL, cfg.Token, base...)
	return &Env{
		Config:    cfg,
		Client:    c,
		Anon:      c.WithoutAuth(),
		Gen:       c.WithTimeout(cfg.GenerateTimeout),
		Out:       out,
		Log:       logger,
		maxListed: cfg.MaxListed,
	}
}

// reply formats generated text for the transcript according to the suite.
func (e *Env) reply(s string) string {
	if e.previewChars > 0 {
		return preview(s, e.previewChars)
	}
	return strings.TrimSpace(s)
}

// Check is one request/assertion pair. Run returns nil on PASS; any error is
// reported as FAIL and never escapes the runner.
type Check struct {
	// Name is the stable identifier used on the command line and in metrics.
	Name string
	// Title is the label printed in the summary.
	Title string
	// Intro is printed as the numbered step heading.
	Intro func(env *Env) string
	Run   func(ctx context.Context, env *Env) error
}

// Failure is a check error that carries extra lines printed under the FAIL line.
type Failure struct {
	Msg     string
	Details []string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil && f.Msg == "" {
		return f.Err.Error()
	}
	return f.Msg
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(format string, a ...any) error { return &Failure{Msg: fmt.Sprintf(format, a...)} }

// Result is the outcome of one check.
type Result struct {
	Suite    string
	Check    string
	Title    string
	Passed   bool
	Err      error
	Duration time.Duration
}

// runCheck executes c, prints its outcome and converts panics into failures.
func runCheck(ctx context.Context, env *Env, n int, c Check) (res Result) {
	res = Result{Check: c.Name, Title: c.Title}
	intro := c.Title + "..."
	if c.Intro != nil {
		intro = c.Intro(env)
	}
	env.Out.Step(n, intro)
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
			res.Passed = false
			env.Out.Fail("Error: %v", res.Err)
		}
		res.Duration = time.Since(start)
		env.Log.Debug().Str("check", c.Name).Bool("passed", res.Passed).Dur("dur", res.Duration).Msg("check done")
	}()
	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("skipped: %w", err)
		env.Out.Fail("Skipped: %v", err)
		return res
	}
	err := c.Run(ctx, env)
	if err == nil {
		res.Passed = true
		return res
	}
	res.Err = err
	var f *Failure
	if errors.As(err, &f) {
		env.Out.Fail("%s", f.Error())
		for _, d := range f.Details {
			env.Out.Detail("%s", d)
		}
		return res
	}
	env.Out.Fail("Error: %v", err)
	return res
}
