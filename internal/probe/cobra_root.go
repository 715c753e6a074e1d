package probe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"llmprobe/internal/config"
	"llmprobe/internal/mockapi"
)

// errChecksFailed signals a completed run with at least one failed check.
var errChecksFailed = errors.New("one or more checks failed")

// usageError marks errors caused by the invocation rather than the API.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func isUsageError(err error) bool {
	var ue usageError
	return errors.As(err, &ue)
}

// usageArgs reports positional argument errors as usage errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// annotation marking commands that talk to the API and need a valid config.
const annotAPI = "llmprobe/api"

// rootFlags holds the persistent flag values before they are merged into the config.
type rootFlags struct {
	configPath      string
	apiURL          string
	token           string
	model           string
	timeout         time.Duration
	generateTimeout time.Duration
	logLevel        string
	metricsFile     string
}

// apply overlays the flags the user actually set onto cfg.
func (f *rootFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("api-url") {
		cfg.APIURL = f.apiURL
		cfg.APIURLSet = true
	}
	if fl.Changed("token") {
		cfg.Token = f.token
	}
	if fl.Changed("model") {
		cfg.Model = f.model
	}
	if fl.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if fl.Changed("generate-timeout") {
		cfg.GenerateTimeout = f.generateTimeout
	}
	if fl.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fl.Changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
}

// buildRootCmdWith constructs the command tree. cfg is filled in by the
// persistent pre-run hook: defaults, then config file, then environment,
// then flags.
func buildRootCmdWith(cfg *config.Config) *cobra.Command {
	var f rootFlags
	root := &cobra.Command{
		Use:           "llmprobe",
		Short:         "Smoke tests for Ollama-compatible LLM APIs behind bearer auth",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := config.Resolve(f.configPath)
			if err != nil {
				return usageError{err}
			}
			f.apply(cmd, &resolved)
			SetLogLevel(resolved.LogLevel)
			if _, ok := cmd.Annotations[annotAPI]; ok {
				if err := resolved.Validate(); err != nil {
					return usageError{err}
				}
			}
			*cfg = resolved
			return nil
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error { return usageError{err} })

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Config file (yaml|toml|json); default searches ./llmprobe.* and ~/.config/llmprobe/")
	pf.StringVar(&f.apiURL, "api-url", config.DefaultAPIURL, "API base URL (defaults API_URL)")
	pf.StringVar(&f.token, "token", "", "Bearer token (defaults API_TOKEN)")
	pf.StringVar(&f.model, "model", config.DefaultModel, "Model to test (defaults TEST_MODEL)")
	pf.DurationVar(&f.timeout, "timeout", config.DefaultTimeout, "Timeout for auth and listing requests")
	pf.DurationVar(&f.generateTimeout, "generate-timeout", config.DefaultGenerateTimeout, "Timeout for generation requests")
	pf.StringVar(&f.logLevel, "log-level", "info", "Log level: debug|info|warn|error (defaults LLMPROBE_LOG_LEVEL or info)")
	pf.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus text metrics for the run to this file")

	api := map[string]string{annotAPI: ""}

	// run
	var wait time.Duration
	runCmd := &cobra.Command{
		Use:         "run [suite...]",
		Short:       "Run one or more check suites (default " + DefaultSuite + ")",
		Example:     "  llmprobe run\n  llmprobe run public\n  API_TOKEN=secret llmprobe run remote openai\n  llmprobe run all --wait 30s",
		Annotations: api,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return append(SuiteNames(), "all"), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := fnRun(cmd.Context(), *cfg, RunOptions{Suites: args, Wait: wait}, cmd.OutOrStdout())
			if err != nil {
				return usageError{err}
			}
			if !sum.OK() {
				return errChecksFailed
			}
			return nil
		},
	}
	runCmd.Flags().DurationVar(&wait, "wait", 0, "Poll /api/tags for up to this long before running")
	root.AddCommand(runCmd)

	// suites
	root.AddCommand(&cobra.Command{
		Use:   "suites",
		Short: "List the available suites and their checks",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range SuiteNames() {
				s := suites[name]
				fmt.Fprintf(out, "%s: %s\n", s.Name, s.Description)
				if s.DefaultURL != "" {
					fmt.Fprintf(out, "  default endpoint: %s\n", s.DefaultURL)
				}
				for i, c := range s.Checks {
					fmt.Fprintf(out, "  %d. %-16s %s\n", i+1, c.Name, c.Title)
				}
			}
			return nil
		},
	})

	// models
	root.AddCommand(&cobra.Command{
		Use:         "models",
		Short:       "List the models the API serves",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: api,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnListModels(cmd.Context(), *cfg, cmd.OutOrStdout())
		},
	})

	// generate
	var genSystem string
	var genStream bool
	genCmd := &cobra.Command{
		Use:         "generate <prompt...>",
		Short:       "Send one prompt to /api/generate and print the reply",
		Example:     "  llmprobe generate Why is the sky blue?\n  llmprobe generate --stream Count to five",
		Args:        usageArgs(cobra.MinimumNArgs(1)),
		Annotations: api,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnGenerate(cmd.Context(), *cfg, strings.Join(args, " "), genSystem, genStream, cmd.OutOrStdout())
		},
	}
	genCmd.Flags().StringVar(&genSystem, "system", "", "System prompt")
	genCmd.Flags().BoolVar(&genStream, "stream", false, "Print fragments as they arrive")
	root.AddCommand(genCmd)

	// chat
	var chatSystem string
	var chatStream bool
	chatCmd := &cobra.Command{
		Use:         "chat <prompt...>",
		Short:       "Send one message to /v1/chat/completions and print the reply",
		Example:     "  llmprobe chat --system \"You are terse.\" What is AI?",
		Args:        usageArgs(cobra.MinimumNArgs(1)),
		Annotations: api,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnChat(cmd.Context(), *cfg, strings.Join(args, " "), chatSystem, chatStream, cmd.OutOrStdout())
		},
	}
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "System message sent before the prompt")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "Print deltas as they arrive")
	root.AddCommand(chatCmd)

	// mock
	var mo mockOptions
	var mockModels []string
	var quiet bool
	mockCmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve a local mock of the API (token from --token or API_TOKEN)",
		Example: "  API_TOKEN=secret llmprobe mock --addr 127.0.0.1:9100 &\n" +
			"  API_URL=http://127.0.0.1:9100 API_TOKEN=secret llmprobe run",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			mo.API.Token = cfg.Token
			mo.API.Models = mockModels
			if len(mo.API.Models) == 0 {
				mo.API.Models = []string{cfg.Model}
			}
			mo.Verbose = !quiet
			return fnServeMock(cmd.Context(), mo, cmd.OutOrStdout())
		},
	}
	mockCmd.Flags().StringVar(&mo.Addr, "addr", "127.0.0.1:9100", "Listen address")
	mockCmd.Flags().StringSliceVar(&mockModels, "models", nil, "Comma-separated models to serve (default: --model)")
	mockCmd.Flags().StringVar(&mo.API.Reply, "reply", mockapi.DefaultReply, "Text every generation returns")
	mockCmd.Flags().DurationVar(&mo.API.ChunkDelay, "delay", 0, "Delay between streamed fragments")
	mockCmd.Flags().StringSliceVar(&mo.API.CORSOrigins, "cors-origins", nil, "Comma-separated allowed CORS origins")
	mockCmd.Flags().BoolVar(&quiet, "quiet", false, "Do not log requests")
	root.AddCommand(mockCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error {
		return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
	}})
	root.AddCommand(completionCmd)
	root.CompletionOptions.DisableDefaultCmd = true

	return root
}
