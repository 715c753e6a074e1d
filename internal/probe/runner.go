package probe

import (
	"context"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"llmprobe/internal/client"
	"llmprobe/internal/config"
)

// Summary aggregates the results of a run, in execution order.
type Summary struct {
	Results []Result
}

// Passed counts passing checks.
func (s Summary) Passed() int {
	n := 0
	for _, r := range s.Results {
		if r.Passed {
			n++
		}
	}
	return n
}

// Total counts all checks.
func (s Summary) Total() int { return len(s.Results) }

// OK reports whether every check passed. An empty run is not OK.
func (s Summary) OK() bool { return s.Total() > 0 && s.Passed() == s.Total() }

// ExitCode is 0 when every check passed, 1 otherwise.
func (s Summary) ExitCode() int {
	if s.OK() {
		return 0
	}
	return 1
}

// RunSuite executes the checks of suite sequentially and returns their results.
func RunSuite(ctx context.Context, env *Env, suite Suite) []Result {
	env.previewChars = 0
	if suite.Preview {
		env.previewChars = env.Config.PreviewChars
	}
	env.maxListed = env.Config.MaxListed
	if env.maxListed == 0 {
		env.maxListed = suite.MaxListed
	}

	env.Out.Section(suite.Title)
	env.Out.Line("API Endpoint: %s", env.Config.APIURL)
	env.Out.Line("Model: %s", env.Config.Model)
	env.Out.Blank()

	results := make([]Result, 0, len(suite.Checks))
	for i, c := range suite.Checks {
		r := runCheck(ctx, env, i+1, c)
		r.Suite = suite.Name
		results = append(results, r)
		env.Out.Blank()
	}
	return results
}

// RunOptions controls a multi-suite run.
type RunOptions struct {
	Suites []string
	// Wait, when positive, polls the API until it answers before running.
	Wait time.Duration
	// ClientOptions are appended to the defaults, e.g. to inject an HTTP client.
	ClientOptions []client.Option
}

// Run resolves the suites, executes them in order and prints the summary.
// Check failures are reported in the Summary; the error is only non-nil for
// usage problems such as an unknown suite.
func Run(ctx context.Context, cfg config.Config, opts RunOptions, out io.Writer) (Summary, error) {
	selected, err := LookupSuites(opts.Suites)
	if err != nil {
		return Summary{}, err
	}
	rep := NewReporter(out)
	metrics := NewMetrics()
	var sum Summary
	for _, s := range selected {
		scfg := cfg
		if s.DefaultURL != "" && !cfg.APIURLSet {
			scfg.APIURL = s.DefaultURL
		}
		if scfg.Token == "" {
			warn("no API token configured; set API_TOKEN or --token")
		}
		env := NewEnv(scfg, rep, opts.ClientOptions...)
		if opts.Wait > 0 {
			if err := waitForAPI(ctx, env.Anon, opts.Wait); err != nil {
				warn("%v", err)
			}
		}
		info("running suite %s against %s", s.Name, scfg.APIURL)
		results := RunSuite(ctx, env, s)
		for _, r := range results {
			metrics.Observe(r)
		}
		metrics.Target(s.Name, scfg.APIURL, scfg.Model)
		sum.Results = append(sum.Results, results...)
	}
	printSummary(rep, sum, len(selected) > 1)
	if cfg.MetricsFile != "" {
		if err := metrics.WriteFile(cfg.MetricsFile); err != nil {
			warn("writing metrics file %s: %v", cfg.MetricsFile, err)
		} else {
			debug("wrote metrics to %s", cfg.MetricsFile)
		}
	}
	return sum, nil
}

func printSummary(rep *Reporter, sum Summary, withSuite bool) {
	rep.Section("Test Summary")
	tw := tablewriter.NewWriter(rep.w)
	header := []string{"Result", "Check", "Duration"}
	if withSuite {
		header = []string{"Result", "Suite", "Check", "Duration"}
	}
	tw.SetHeader(header)
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)
	for _, r := range sum.Results {
		status := markPass + " PASS"
		if !r.Passed {
			status = markFail + " FAIL"
		}
		dur := r.Duration.Round(time.Millisecond).String()
		if withSuite {
			tw.Append([]string{status, r.Suite, r.Title, dur})
		} else {
			tw.Append([]string{status, r.Title, dur})
		}
	}
	tw.Render()
	rep.Blank()
	rep.Line("Total: %d/%d tests passed", sum.Passed(), sum.Total())
	if sum.OK() {
		rep.Line("\nAll tests passed! API is working.")
		return
	}
	rep.Line("\n%d test(s) failed!", sum.Total()-sum.Passed())
}
